// Package pipeline runs the daily diary workflow against the checkpoint
// store: every stage is skipped when its artifacts already exist, so an
// interrupted run can simply be started again.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/mrcrgl/diariesai/checkpoint"
	"github.com/mrcrgl/diariesai/generator"
)

// ContentGenerator produces and persists post, image prompt and image.
type ContentGenerator interface {
	Generate(ctx context.Context, date, prompt string) (generator.Result, error)
}

// Publisher posts an image with caption and returns the remote post id.
type Publisher interface {
	Publish(ctx context.Context, imagePath, caption string) (string, error)
}

// Factories build service clients only when a stage actually needs them.
type (
	GeneratorFactory func() (ContentGenerator, error)
	PublisherFactory func() (Publisher, error)
)

// Options configures a Pipeline.
type Options struct {
	// DefaultPrompt is used when generate gets no prompt and none is stored.
	DefaultPrompt string
	// PreparePrompt wraps the prompt given to prepare.
	PreparePrompt string
	Verbose       bool
}

type Pipeline struct {
	store        checkpoint.Store
	newGenerator GeneratorFactory
	newPublisher PublisherFactory
	defaultTmpl  *PromptTemplate
	prepareTmpl  *PromptTemplate
	out          io.Writer
	verbose      bool
	logger       *log.Logger
}

func New(store checkpoint.Store, newGenerator GeneratorFactory, newPublisher PublisherFactory, opts Options, out io.Writer, logger *log.Logger) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if newGenerator == nil || newPublisher == nil {
		return nil, errors.New("generator and publisher factories are required")
	}
	defaultTmpl, err := ParsePrompt("default", opts.DefaultPrompt)
	if err != nil {
		return nil, err
	}
	prepareTmpl, err := ParsePrompt("prepare", opts.PreparePrompt)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		store:        store,
		newGenerator: newGenerator,
		newPublisher: newPublisher,
		defaultTmpl:  defaultTmpl,
		prepareTmpl:  prepareTmpl,
		out:          out,
		verbose:      opts.Verbose,
		logger:       logger,
	}, nil
}

func (p *Pipeline) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] [pipeline] "+format, args...)
}

func (p *Pipeline) say(line string) {
	fmt.Fprintln(p.out, line)
}

// GenerateRequest holds the arguments of the generate command.
type GenerateRequest struct {
	Date string
	// Prompt overrides and replaces the stored prompt when non-empty.
	Prompt string
	Post   bool
}

// Report describes what a generate run did.
type Report struct {
	Date        string
	Prompt      string
	OutputDir   string
	AlreadySent bool
	Generated   bool
	Published   bool
	PostID      string
}

// Generate runs the generate workflow for one date. Artifacts written before
// a failure are kept and reused by the next run.
func (p *Pipeline) Generate(ctx context.Context, req GenerateRequest) (Report, error) {
	report := Report{Date: req.Date, OutputDir: p.store.Dir(req.Date)}
	if err := checkpoint.ValidateDate(req.Date); err != nil {
		return report, err
	}

	sent, err := checkpoint.StagePublish.Complete(p.store, req.Date)
	if err != nil {
		return report, err
	}
	if sent {
		p.say("Post already sent.")
		report.AlreadySent = true
		return report, nil
	}

	if err := p.store.EnsureDir(req.Date); err != nil {
		return report, err
	}

	prompt, err := p.workingPrompt(req.Date, req.Prompt)
	if err != nil {
		return report, err
	}
	report.Prompt = prompt
	p.say("Input Prompt: " + prompt)
	p.say("Output Dir: " + report.OutputDir)

	generated, err := checkpoint.StageGeneration.Complete(p.store, req.Date)
	if err != nil {
		return report, err
	}
	if generated {
		p.say("Skipped content generation.")
	} else {
		gen, err := p.newGenerator()
		if err != nil {
			return report, err
		}
		if _, err := gen.Generate(ctx, req.Date, prompt); err != nil {
			return report, fmt.Errorf("generating content for %s: %w", req.Date, err)
		}
		report.Generated = true
	}

	if req.Post {
		id, err := p.publish(ctx, req.Date)
		if err != nil {
			return report, err
		}
		report.Published = true
		report.PostID = id
	} else {
		p.say("Skipped publishing")
	}

	p.say("done.")
	return report, nil
}

// workingPrompt resolves the prompt: an explicit one wins and is stored, a
// stored one is reused verbatim, otherwise the default is rendered and stored.
func (p *Pipeline) workingPrompt(date, override string) (string, error) {
	if override != "" {
		if _, err := p.store.Write(date, checkpoint.InputPrompt, []byte(override)); err != nil {
			return "", err
		}
		p.infof("stored prompt override for %s", date)
		return override, nil
	}

	ok, err := p.store.Exists(date, checkpoint.InputPrompt)
	if err != nil {
		return "", err
	}
	if ok {
		data, err := p.store.Read(date, checkpoint.InputPrompt)
		if err != nil {
			return "", err
		}
		p.infof("reusing stored prompt for %s", date)
		return string(data), nil
	}

	prompt, err := p.defaultTmpl.Format(PromptData{Date: date})
	if err != nil {
		return "", err
	}
	if _, err := p.store.Write(date, checkpoint.InputPrompt, []byte(prompt)); err != nil {
		return "", err
	}
	p.infof("stored default prompt for %s", date)
	return prompt, nil
}

func (p *Pipeline) publish(ctx context.Context, date string) (string, error) {
	caption, err := p.store.Read(date, checkpoint.GeneratedPost)
	if err != nil {
		return "", err
	}
	pub, err := p.newPublisher()
	if err != nil {
		return "", err
	}
	id, err := pub.Publish(ctx, p.store.Path(date, checkpoint.GeneratedImage), string(caption))
	if err != nil {
		return "", fmt.Errorf("publishing %s: %w", date, err)
	}
	if _, err := p.store.Write(date, checkpoint.PublishMarker, []byte(id)); err != nil {
		return "", fmt.Errorf("post %s was published but recording it failed: %w", id, err)
	}
	p.infof("published %s as %s", date, id)
	return id, nil
}

// Prepare stores a prompt for a future generate run. It reports false when
// the date is already generated or sent and nothing was written.
func (p *Pipeline) Prepare(date, prompt string) (bool, error) {
	if err := checkpoint.ValidateDate(date); err != nil {
		return false, err
	}
	if strings.TrimSpace(prompt) == "" {
		return false, errors.New("prompt is required")
	}

	generated, err := p.store.Exists(date, checkpoint.GeneratedPost)
	if err != nil {
		return false, err
	}
	if generated {
		p.say("Skipped. Post already generated.")
		return false, nil
	}
	sent, err := p.store.Exists(date, checkpoint.PublishMarker)
	if err != nil {
		return false, err
	}
	if sent {
		p.say("Skipped. Post already sent.")
		return false, nil
	}

	text, err := p.prepareTmpl.Format(PromptData{Date: date, Prompt: prompt})
	if err != nil {
		return false, err
	}
	if _, err := p.store.Write(date, checkpoint.InputPrompt, []byte(text)); err != nil {
		return false, err
	}
	p.say("saved.")
	return true, nil
}

// StageStatus is the state of one stage for a date.
type StageStatus struct {
	Stage    checkpoint.Stage
	Complete bool
	Missing  []checkpoint.Kind
}

// Status prints and returns the state of every stage. It never writes.
func (p *Pipeline) Status(date string) ([]StageStatus, error) {
	if err := checkpoint.ValidateDate(date); err != nil {
		return nil, err
	}
	fmt.Fprintf(p.out, "%s (%s)\n", date, p.store.Dir(date))
	var out []StageStatus
	for _, st := range checkpoint.Stages {
		missing, err := checkpoint.Missing(p.store, date, st.Kinds()...)
		if err != nil {
			return nil, err
		}
		s := StageStatus{Stage: st, Complete: len(missing) == 0, Missing: missing}
		out = append(out, s)

		state := "done"
		if !s.Complete {
			names := make([]string, len(missing))
			for i, k := range missing {
				names[i] = string(k)
			}
			state = "missing " + strings.Join(names, ", ")
		}
		fmt.Fprintf(p.out, "  %-10s %s\n", st, state)
	}
	return out, nil
}
