package notify

import (
	"fmt"
	"html"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// LogHost writes notices to the global zap logger.
type LogHost struct{}

func (LogHost) Mount(n Notice) {
	if n.Kind == Error {
		zap.S().Warnf("notice: %s", n.Message)
		return
	}
	zap.S().Infof("notice: %s", n.Message)
}

func (LogHost) Unmount(id uint64) {
	zap.S().Debugf("notice %d dismissed", id)
}

// MemoryHost keeps the mounted notice so it can be served to a display.
type MemoryHost struct {
	mu      sync.RWMutex
	current *Notice
}

func (m *MemoryHost) Mount(n Notice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &n
}

func (m *MemoryHost) Unmount(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.ID == id {
		m.current = nil
	}
}

// Current returns the mounted notice.
func (m *MemoryHost) Current() (Notice, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Notice{}, false
	}
	return *m.current, true
}

type multiHost []Host

// Hosts fans notices out to every host in order.
func Hosts(hosts ...Host) Host {
	return multiHost(hosts)
}

func (m multiHost) Mount(n Notice) {
	for _, h := range m {
		h.Mount(n)
	}
}

func (m multiHost) Unmount(id uint64) {
	for _, h := range m {
		h.Unmount(id)
	}
}

var textPolicy = bluemonday.StrictPolicy()

const noticeStyle = `.notification{position:fixed;top:20px;right:20px;padding:16px 24px;border-radius:12px;` +
	`background:%s;color:white;font-family:sans-serif;font-size:14px;font-weight:600;` +
	`box-shadow:0 8px 24px rgba(0,0,0,0.2);z-index:999999;animation:slideIn 0.3s ease-out}` +
	`@keyframes slideIn{from{transform:translateX(100%%)}to{transform:translateX(0)}}`

// Color returns the background color for kind.
func Color(kind Kind) string {
	if kind == Error {
		return "#FF4D4D"
	}
	return "#00A1E0"
}

// RenderHTML returns a self-contained fragment for n. Markup in the message is
// stripped.
func RenderHTML(n Notice) string {
	msg := html.EscapeString(html.UnescapeString(textPolicy.Sanitize(n.Message)))
	return fmt.Sprintf(`<div id="crm-extractor-notification"><style>%s</style><div class="notification %s">%s</div></div>`,
		fmt.Sprintf(noticeStyle, Color(n.Kind)), n.Kind, msg)
}
