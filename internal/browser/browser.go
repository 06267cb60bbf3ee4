// Package browser owns the single shared headless-browser instance used by
// every browser-category tool. Tools acquire a page, use it, and release
// it; the instance itself self-closes after a period with no active
// acquisitions: an acquire/release reference count paired with an idle
// reaper.
package browser

import (
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// IdleTimeout is how long the shared browser stays alive with no acquired
// pages before the reaper closes it.
const IdleTimeout = 5 * time.Minute

// Manager hands out pages from a lazily-started, shared headless browser
// and closes it after IdleTimeout of inactivity. Safe for concurrent use.
type Manager struct {
	userDataDir string

	mu        sync.Mutex
	browser   *rod.Browser
	launcherL *launcher.Launcher
	refs      int
	lastUsed  time.Time
	closeC    chan struct{}
}

// NewManager returns a Manager that stores its browser profile under
// userDataDir (typically the agent's browser-cache directory).
func NewManager(userDataDir string) *Manager {
	return &Manager{userDataDir: userDataDir}
}

// Acquire starts the browser if it is not already running and returns a
// page along with a release function the caller must invoke exactly once
// when done with it.
func (m *Manager) Acquire() (*rod.Page, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser == nil {
		l := launcher.New().
			Headless(true).
			UserDataDir(m.userDataDir).
			Set("disable-gpu").
			Set("no-sandbox")
		url, err := l.Launch()
		if err != nil {
			return nil, nil, err
		}
		m.launcherL = l
		m.browser = rod.New().ControlURL(url)
		if err := m.browser.Connect(); err != nil {
			m.launcherL.Cleanup()
			m.launcherL = nil
			m.browser = nil
			return nil, nil, err
		}
		m.startReaper()
	}

	page, err := m.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, nil, err
	}

	m.refs++
	m.lastUsed = time.Now()

	released := false
	release := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if released {
			return
		}
		released = true
		m.refs--
		m.lastUsed = time.Now()
		page.Close()
	}

	return page, release, nil
}

// startReaper launches the idle-eviction goroutine. Must be called with m.mu
// held, exactly once per browser lifetime.
func (m *Manager) startReaper() {
	closeC := make(chan struct{})
	m.closeC = closeC
	go func() {
		ticker := time.NewTicker(IdleTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-closeC:
				return
			case <-ticker.C:
				m.mu.Lock()
				idle := m.refs == 0 && time.Since(m.lastUsed) >= IdleTimeout
				if idle && m.browser != nil {
					m.browser.Close()
					m.browser = nil
					if m.launcherL != nil {
						m.launcherL.Cleanup()
						m.launcherL = nil
					}
					m.mu.Unlock()
					return
				}
				m.mu.Unlock()
			}
		}
	}()
}

// Close shuts down the browser immediately, regardless of idle state. Used
// on agent shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closeC != nil {
		close(m.closeC)
		m.closeC = nil
	}
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.launcherL != nil {
		m.launcherL.Cleanup()
		m.launcherL = nil
	}
}
