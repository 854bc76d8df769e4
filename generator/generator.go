// Package generator produces the diary post text, the image prompt and the
// image by driving the assistant service through one conversation.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/mrcrgl/diariesai/checkpoint"
)

// Options configures a Generator.
type Options struct {
	// InstructionsPath is read on every generation and pushed to the assistant.
	InstructionsPath string
	Model            string
	// FollowUp is the second user turn asking for the image prompt.
	FollowUp string
}

// Generator runs the two assistant exchanges and the image render for one
// date, persisting each artifact as soon as it exists.
type Generator struct {
	jobs   *JobClient
	images ImageRenderer
	store  checkpoint.Store
	opts   Options
	logger *log.Logger
}

func NewGenerator(jobs *JobClient, images ImageRenderer, store checkpoint.Store, opts Options, logger *log.Logger) (*Generator, error) {
	if jobs == nil {
		return nil, errors.New("job client is required")
	}
	if images == nil {
		return nil, errors.New("image renderer is required")
	}
	if store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if opts.InstructionsPath == "" {
		return nil, errors.New("instructions path is required")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.FollowUp == "" {
		opts.FollowUp = DefaultFollowUp
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{jobs: jobs, images: images, store: store, opts: opts, logger: logger}, nil
}

// Generate always starts a fresh conversation. Any failing step aborts the
// call; artifacts written before the failure stay on disk.
func (g *Generator) Generate(ctx context.Context, date, prompt string) (Result, error) {
	instructions, err := os.ReadFile(g.opts.InstructionsPath)
	if err != nil {
		return Result{}, fmt.Errorf("reading instructions %s: %w", g.opts.InstructionsPath, err)
	}
	if err := g.jobs.Configure(ctx, string(instructions), g.opts.Model); err != nil {
		return Result{}, err
	}

	sess, err := g.jobs.NewSession(ctx, prompt)
	if err != nil {
		return Result{}, err
	}

	post, err := sess.Reply(ctx, jobGeneratePost)
	if err != nil {
		return Result{}, err
	}
	if _, err := g.store.Write(date, checkpoint.GeneratedPost, []byte(post)); err != nil {
		return Result{}, err
	}

	imagePrompt, err := sess.Ask(ctx, jobGenerateImagePrompt, g.opts.FollowUp)
	if err != nil {
		return Result{}, err
	}
	if _, err := g.store.Write(date, checkpoint.ImagePrompt, []byte(imagePrompt)); err != nil {
		return Result{}, err
	}

	img, err := g.images.Render(ctx, imagePrompt)
	if err != nil {
		return Result{}, err
	}
	imagePath, err := g.store.Write(date, checkpoint.GeneratedImage, img)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Post:        post,
		ImagePrompt: imagePrompt,
		ImagePath:   imagePath,
		History:     sess.History,
	}, nil
}
