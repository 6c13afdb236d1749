package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"taxharvest/models"
)

// RodBackend drives Chromium through go-rod. It covers the older NC county
// portals whose flows were tuned against a synchronous driver.
type RodBackend struct {
	opts     Options
	logger   *slog.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRod builds the backend without launching anything.
func NewRod(opts Options, logger *slog.Logger) *RodBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &RodBackend{opts: opts, logger: logger}
}

func (b *RodBackend) Name() string { return "rod" }

func (b *RodBackend) Start(ctx context.Context) error {
	l := launcher.New().
		Headless(b.opts.Headless).
		Set("user-agent", b.opts.UserAgent).
		Set("disable-blink-features", "AutomationControlled").
		Set("no-sandbox")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launching chromium: %w", err)
	}
	b.launcher = l

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connecting to browser: %w", err)
	}
	b.browser = browser

	b.logger.Debug("rod started", "headless", b.opts.Headless)
	return nil
}

func (b *RodBackend) NewSession(ctx context.Context) (Automator, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	return &rodSession{page: page, opts: b.opts}, nil
}

func (b *RodBackend) Stop() error {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return nil
}

type rodSession struct {
	page *rod.Page
	opts Options
}

func (s *rodSession) Navigate(ctx context.Context, url string, wait models.WaitStrategy) error {
	page := s.page.Timeout(s.opts.NavTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("waiting for load of %s: %w", url, err)
	}
	if wait == models.WaitNetworkIdle {
		// Best effort; polling portals never go fully idle.
		if err := page.WaitIdle(5 * time.Second); err != nil {
			return fmt.Errorf("waiting for idle on %s: %w", url, err)
		}
	}
	return nil
}

func (s *rodSession) element(selector string) (*rod.Element, error) {
	el, err := s.page.Timeout(s.opts.SelectorTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", selector, err)
	}
	return el, nil
}

func (s *rodSession) Fill(ctx context.Context, selector, value string) error {
	el, err := s.element(selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err == nil {
		el.Input("")
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("filling %s: %w", selector, err)
	}
	return nil
}

func (s *rodSession) Click(ctx context.Context, selector string) error {
	el, err := s.element(selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("clicking %s: %w", selector, err)
	}
	return nil
}

func (s *rodSession) Press(ctx context.Context, selector, key string) error {
	el, err := s.element(selector)
	if err != nil {
		return err
	}
	k := input.Enter
	switch key {
	case "Tab":
		k = input.Tab
	case "Escape":
		k = input.Escape
	}
	if err := el.Type(k); err != nil {
		return fmt.Errorf("pressing %s on %s: %w", key, selector, err)
	}
	return nil
}

func (s *rodSession) Texts(ctx context.Context, selector string) []string {
	els, err := s.page.Elements(selector)
	if err != nil {
		return nil
	}
	var out []string
	for _, el := range els {
		if text, err := el.Text(); err == nil {
			out = append(out, text)
		}
	}
	return out
}

func (s *rodSession) WaitVisible(ctx context.Context, selector string) error {
	el, err := s.element(selector)
	if err != nil {
		return err
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

func (s *rodSession) PageText(ctx context.Context) (string, error) {
	el, err := s.element("body")
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("reading page text: %w", err)
	}
	return text, nil
}

func (s *rodSession) Content(ctx context.Context) (string, error) {
	html, err := s.page.HTML()
	if err != nil {
		return "", fmt.Errorf("reading page content: %w", err)
	}
	return html, nil
}

func (s *rodSession) URL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (s *rodSession) Title() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.Title
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := s.page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return png, nil
}

func (s *rodSession) Close() error {
	return s.page.Close()
}
