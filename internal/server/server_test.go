package server

import "testing"

func TestAddrFor(t *testing.T) {
	tests := []struct {
		port int
		want string
	}{
		{8765, ":8765"},
		{80, ":80"},
		{0, ":8765"}, // falls back to DefaultConfig's port
	}

	for _, tt := range tests {
		if got := addrFor(tt.port); got != tt.want {
			t.Errorf("addrFor(%d) = %q, want %q", tt.port, got, tt.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8765 {
		t.Errorf("expected default port 8765, got %d", cfg.Port)
	}
	if !cfg.EnableCORS {
		t.Error("expected CORS enabled by default")
	}
	if cfg.WriteTimeout != 0 {
		t.Error("expected no write timeout by default, so SSE connections are never cut off")
	}
}
