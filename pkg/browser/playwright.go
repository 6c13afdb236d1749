package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/playwright-community/playwright-go"

	"taxharvest/models"
)

// PlaywrightBackend drives Chromium through playwright. Used for the
// modern portals (Maricopa, Harris) whose search flows need real
// JavaScript execution.
type PlaywrightBackend struct {
	opts    Options
	logger  *slog.Logger
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
}

// NewPlaywright builds the backend without launching anything.
func NewPlaywright(opts Options, logger *slog.Logger) *PlaywrightBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaywrightBackend{opts: opts, logger: logger}
}

func (b *PlaywrightBackend) Name() string { return "playwright" }

func (b *PlaywrightBackend) Start(ctx context.Context) error {
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("starting playwright: %w", err)
	}
	b.pw = pw

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("launching chromium: %w", err)
	}
	b.browser = browser

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(b.opts.UserAgent),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("creating browser context: %w", err)
	}
	b.bctx = bctx

	b.logger.Debug("playwright started", "headless", b.opts.Headless)
	return nil
}

func (b *PlaywrightBackend) NewSession(ctx context.Context) (Automator, error) {
	page, err := b.bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	return &playwrightSession{page: page, opts: b.opts}, nil
}

func (b *PlaywrightBackend) Stop() error {
	if b.bctx != nil {
		b.bctx.Close()
	}
	if b.browser != nil {
		b.browser.Close()
	}
	if b.pw != nil {
		return b.pw.Stop()
	}
	return nil
}

type playwrightSession struct {
	page playwright.Page
	opts Options
}

func waitUntilState(wait models.WaitStrategy) *playwright.WaitUntilState {
	switch wait {
	case models.WaitNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	case models.WaitLoad:
		return playwright.WaitUntilStateLoad
	default:
		return playwright.WaitUntilStateDomcontentloaded
	}
}

func (s *playwrightSession) Navigate(ctx context.Context, url string, wait models.WaitStrategy) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(s.opts.NavTimeout.Milliseconds())),
		WaitUntil: waitUntilState(wait),
	})
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (s *playwrightSession) selectorTimeout() *float64 {
	return playwright.Float(float64(s.opts.SelectorTimeout.Milliseconds()))
}

func (s *playwrightSession) Fill(ctx context.Context, selector, value string) error {
	err := s.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{
		Timeout: s.selectorTimeout(),
	})
	if err != nil {
		return fmt.Errorf("filling %s: %w", selector, err)
	}
	return nil
}

func (s *playwrightSession) Click(ctx context.Context, selector string) error {
	err := s.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: s.selectorTimeout(),
	})
	if err != nil {
		return fmt.Errorf("clicking %s: %w", selector, err)
	}
	return nil
}

func (s *playwrightSession) Press(ctx context.Context, selector, key string) error {
	err := s.page.Locator(selector).First().Press(key, playwright.LocatorPressOptions{
		Timeout: s.selectorTimeout(),
	})
	if err != nil {
		return fmt.Errorf("pressing %s on %s: %w", key, selector, err)
	}
	return nil
}

func (s *playwrightSession) Texts(ctx context.Context, selector string) []string {
	texts, err := s.page.Locator(selector).AllTextContents()
	if err != nil {
		return nil
	}
	return texts
}

func (s *playwrightSession) WaitVisible(ctx context.Context, selector string) error {
	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: s.selectorTimeout(),
	})
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

func (s *playwrightSession) PageText(ctx context.Context) (string, error) {
	text, err := s.page.Locator("body").InnerText()
	if err != nil {
		return "", fmt.Errorf("reading page text: %w", err)
	}
	return text, nil
}

func (s *playwrightSession) Content(ctx context.Context) (string, error) {
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("reading page content: %w", err)
	}
	return html, nil
}

func (s *playwrightSession) URL() string { return s.page.URL() }

func (s *playwrightSession) Title() string {
	title, err := s.page.Title()
	if err != nil {
		return ""
	}
	return title
}

func (s *playwrightSession) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return png, nil
}

func (s *playwrightSession) Close() error {
	return s.page.Close()
}
