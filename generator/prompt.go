package generator

// DefaultFollowUp asks the assistant to turn the scene it just wrote into a
// prompt for the image model.
const DefaultFollowUp = "Erstelle einen detaillierten Prompt für ein fotorealistisches Bild dieser szene"

// Defaults for the assistant and the image model.
const (
	DefaultModel      = "gpt-4-1106-preview"
	DefaultImageModel = "dall-e-3"
	DefaultImageSize  = "1024x1024"
)

// Job descriptions used in progress output.
const (
	jobGeneratePost        = "Generate Post"
	jobGenerateImagePrompt = "Generate Image Prompt"
)
