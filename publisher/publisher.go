// Package publisher posts the generated diary entry to Instagram.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"time"
)

// DefaultSettingsPath is where the session state is kept between runs.
const DefaultSettingsPath = "insta_settings.json"

// Config holds the Instagram account and client settings.
type Config struct {
	Username      string
	Password      string
	Locale        string
	BaseURL       string
	SettingsPath  string
	CaptionFormat string
	ReuseSession  bool
}

// Publisher logs in and uploads one photo per call.
type Publisher struct {
	cfg     Config
	client  *http.Client
	verbose bool
	logger  *log.Logger
}

func New(cfg Config, client *http.Client, verbose bool, logger *log.Logger) (*Publisher, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("instagram credentials missing; set IG_USER and IG_PASS")
	}
	if cfg.Locale == "" {
		cfg.Locale = DefaultLocale
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = DefaultSettingsPath
	}
	if cfg.CaptionFormat == "" {
		cfg.CaptionFormat = CaptionRaw
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{cfg: cfg, client: client, verbose: verbose, logger: logger}, nil
}

func (p *Publisher) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] "+format, args...)
}

// Publish logs in, saves the session and uploads the photo with caption.
// It returns the id of the new media.
func (p *Publisher) Publish(ctx context.Context, imagePath, caption string) (string, error) {
	if imagePath == "" {
		return "", errors.New("image path is required")
	}
	text, err := FormatCaption(caption, p.cfg.CaptionFormat)
	if err != nil {
		return "", err
	}

	p.logger.Printf("[instagram] Login to IG")
	ig := NewInstagram(p.cfg.BaseURL, p.client, p.verbose, p.logger)
	if err := ig.LoadSettings(p.cfg.SettingsPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("loading instagram settings: %w", err)
		}
		p.infof("no instagram settings at %s, starting fresh", p.cfg.SettingsPath)
	}
	ig.SetReuseSession(p.cfg.ReuseSession)
	ig.SetLocale(p.cfg.Locale)
	ig.Init()
	if err := ig.Login(ctx, p.cfg.Username, p.cfg.Password); err != nil {
		return "", fmt.Errorf("instagram login: %w", err)
	}
	if err := ig.DumpSettings(p.cfg.SettingsPath); err != nil {
		return "", fmt.Errorf("saving instagram settings: %w", err)
	}
	p.infof("saved instagram settings to %s", p.cfg.SettingsPath)

	p.logger.Printf("[instagram] Post to IG")
	id, err := ig.PhotoUpload(ctx, imagePath, text)
	if err != nil {
		return "", fmt.Errorf("instagram upload: %w", err)
	}
	p.infof("published media_id=%s", id)
	return id, nil
}
