package source

import (
	"context"
	"sync"
)

// Token identifies one load request issued through Latest.
type Token uint64

// Latest tracks the most recent load request. Starting a request cancels the
// previous one, and completions check IsLatest before publishing so an older
// load can never overwrite a newer one.
type Latest struct {
	mu     sync.Mutex
	seq    Token
	cancel context.CancelFunc
}

// Begin issues a new token and a context that is cancelled when the next
// request begins.
func (l *Latest) Begin(ctx context.Context) (context.Context, Token) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.seq++
	return ctx, l.seq
}

// IsLatest reports whether tok is still the newest request.
func (l *Latest) IsLatest(tok Token) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return tok == l.seq
}

// Stop cancels the in-flight request, if any, and invalidates its token.
func (l *Latest) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.seq++
}
