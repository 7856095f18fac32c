package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/comicdl/pkg/domain/types"
)

// mockTransport is a mock implementation of interfaces.Transport
type mockTransport struct {
	getFunc func(ctx context.Context, url string) ([]byte, error)

	mu          sync.Mutex
	calls       []string
	inFlight    int
	maxInFlight int
}

func (m *mockTransport) Get(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.getFunc == nil {
		return nil, goerr.New("mock not configured", goerr.T(types.ErrTagTransport))
	}
	return m.getFunc(ctx, url)
}

func (m *mockTransport) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockTransport) CallCount(match string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if strings.Contains(c, match) {
			n++
		}
	}
	return n
}

func (m *mockTransport) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

func transportError(url string) error {
	return goerr.New("connection reset", goerr.V("url", url), goerr.T(types.ErrTagTransport))
}

// sectionPage renders a reader page embedding a manifest with the given image titles
func sectionPage(base string, titles ...string) []byte {
	var b strings.Builder
	b.WriteString("<html><body><script>\nwindow.PG_CONFIG = {};\nwindow.PG_CONFIG.images = [\n")
	for _, title := range titles {
		stem := strings.TrimSuffix(title, ".png")
		fmt.Fprintf(&b, "  {\n    title: %q,\n    url: window.IS_SUPPORT_WEBP ? %q : %q,\n    width: 800\n  },\n",
			title,
			base+"/img/"+stem+".webp",
			base+"/img/"+stem+".jpg",
		)
	}
	b.WriteString("];\n</script></body></html>")
	return []byte(b.String())
}

const paywalledPage = "<html><body><script>window.PG_CONFIG = {};</script>本章为付费章节</body></html>"
