package exportchromium

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-calexport/export"
)

const defaultLaunchTimeout = 30 * time.Second

// ConstrainedArgs is the reduced flag set used in serverless sandboxes.
var ConstrainedArgs = []string{
	"--no-sandbox",
	"--no-zygote",
	"--single-process",
	"--disable-dev-shm-usage",
	"--disable-gpu",
	"--disable-setuid-sandbox",
	"--headless=shell",
	"--hide-scrollbars",
	"--mute-audio",
}

// Default window of the bundled constrained browser.
const (
	ConstrainedWindowWidth  = 1920
	ConstrainedWindowHeight = 1080
)

// bundledBinaryNames are looked up inside a bundle directory, in order.
var bundledBinaryNames = []string{
	"chromium",
	"headless_shell",
	"chrome-headless-shell",
	"chrome",
}

// Acquirer launches one Chromium per Acquire call.
type Acquirer struct {
	// BrowserPath overrides the executable for the local profile.
	BrowserPath string
	// BundlePath is the bundled executable (or directory holding it) for the
	// constrained profile.
	BundlePath string
	// Args are extra flags appended for local and constrained launches.
	Args []string
	// Headless controls the local profile only.
	Headless bool
	// LaunchTimeout bounds browser start-up. Defaults to 30s.
	LaunchTimeout time.Duration
	Logger        export.Logger
}

// NewAcquirer returns a headless acquirer with default settings.
func NewAcquirer() *Acquirer {
	return &Acquirer{
		Headless:      true,
		LaunchTimeout: defaultLaunchTimeout,
		Logger:        export.NopLogger{},
	}
}

var _ export.Acquirer = (*Acquirer)(nil)

// Acquire starts an engine for profile. The browser is launched before
// returning so launch failures surface here. The engine is not bound to ctx:
// only Close on the returned handle stops it.
func (a *Acquirer) Acquire(ctx context.Context, profile export.EnvironmentProfile) (export.EngineHandle, error) {
	if a == nil {
		return nil, export.NewError(export.KindAcquisition, "chromium acquirer is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := a.logger()
	base := context.WithoutCancel(ctx)

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	switch profile.Class {
	case export.ProfileLocal, "":
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, a.localOptions()...)
	case export.ProfileConstrained:
		options, err := a.constrainedOptions()
		if err != nil {
			return nil, err
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, options...)
	case export.ProfileRemote:
		url := strings.TrimSpace(profile.RemoteURL)
		if url == "" {
			return nil, export.NewError(export.KindAcquisition, "remote profile requires an engine url", nil)
		}
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, url)
	default:
		return nil, export.NewError(export.KindAcquisition, fmt.Sprintf("unsupported engine profile: %s", profile.Class), nil)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	handle := &handle{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        logger,
	}

	if err := a.start(ctx, browserCtx); err != nil {
		_ = handle.Close()
		return nil, export.NewError(export.KindAcquisition, fmt.Sprintf("chromium launch failed (profile=%s)", profile.Class), err)
	}
	logger.Debugf("chromium engine started (profile=%s, markers=%v)", profile.Class, profile.Markers)
	return handle, nil
}

// start runs an empty action list on the browser context, which allocates
// the browser. It gives up when ctx ends or the launch timeout expires.
func (a *Acquirer) start(ctx context.Context, browserCtx context.Context) error {
	timeout := a.LaunchTimeout
	if timeout <= 0 {
		timeout = defaultLaunchTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(browserCtx)
	}()

	select {
	case err := <-started:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

func (a *Acquirer) localOptions() []chromedp.ExecAllocatorOption {
	options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if a.BrowserPath != "" {
		options = append(options, chromedp.ExecPath(a.BrowserPath))
	}
	options = append(options, chromedp.Flag("headless", a.Headless))
	options = append(options, allocatorOptionsFromArgs(a.Args)...)
	return options
}

func (a *Acquirer) constrainedOptions() ([]chromedp.ExecAllocatorOption, error) {
	bundle := a.BundlePath
	if bundle == "" {
		bundle = a.BrowserPath
	}
	execPath, err := ResolveBundledExecutable(bundle)
	if err != nil {
		return nil, export.NewError(export.KindAcquisition, "bundled chromium unavailable", err)
	}

	options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	options = append(options,
		chromedp.ExecPath(execPath),
		chromedp.WindowSize(ConstrainedWindowWidth, ConstrainedWindowHeight),
	)
	options = append(options, allocatorOptionsFromArgs(ConstrainedArgs)...)
	options = append(options, allocatorOptionsFromArgs(a.Args)...)
	return options, nil
}

func (a *Acquirer) logger() export.Logger {
	if a.Logger == nil {
		return export.NopLogger{}
	}
	return a.Logger
}

// ResolveBundledExecutable returns the executable for the constrained
// profile. path may name the binary itself or a directory containing one of
// the known bundle binaries.
func ResolveBundledExecutable(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("no bundled executable configured")
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		if err := checkExecutable(path, info); err != nil {
			return "", err
		}
		return path, nil
	}

	for _, name := range bundledBinaryNames {
		candidate := filepath.Join(path, name)
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if checkExecutable(candidate, info) == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no executable browser found in bundle %s", path)
}

func checkExecutable(path string, info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}
