package useragent

import (
	"net/http"
	"sync"
	"testing"
)

func TestNewPool_Defaults(t *testing.T) {
	p := NewPool(nil)
	if p.Len() != len(DefaultAgents) {
		t.Errorf("expected %d identities, got %d", len(DefaultAgents), p.Len())
	}
}

func TestNewPool_SkipsBlank(t *testing.T) {
	p := NewPool([]string{"UA1", "  ", "UA2"})
	if p.Len() != 2 {
		t.Errorf("expected 2 identities, got %d", p.Len())
	}
}

func TestPool_NextRoundRobin(t *testing.T) {
	p := NewPool([]string{"UA1", "UA2", "UA3"})

	expected := []string{"UA1", "UA2", "UA3", "UA1", "UA2"}
	for i, want := range expected {
		if got := p.Next().UserAgent; got != want {
			t.Errorf("call %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestPool_NextConcurrent(t *testing.T) {
	p := NewPool([]string{"UA1", "UA2"})

	var wg sync.WaitGroup
	results := make(chan string, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- p.Next().UserAgent
		}()
	}
	wg.Wait()
	close(results)

	counts := map[string]int{}
	for ua := range results {
		counts[ua]++
	}
	if counts["UA1"] != 50 || counts["UA2"] != 50 {
		t.Errorf("expected an even 50/50 split, got %v", counts)
	}
}

func TestIdentity_Apply(t *testing.T) {
	h := http.Header{}
	NewPool([]string{DefaultAgents[0]}).Next().Apply(h)

	if h.Get("User-Agent") != DefaultAgents[0] {
		t.Errorf("expected User-Agent to be set, got %q", h.Get("User-Agent"))
	}
	if h.Get("Sec-CH-UA-Platform") != `"Windows"` {
		t.Errorf("expected Windows client hint, got %q", h.Get("Sec-CH-UA-Platform"))
	}

	h = http.Header{}
	NewPool([]string{"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0"}).Next().Apply(h)
	if h.Get("Sec-CH-UA-Platform") != "" {
		t.Errorf("expected no client hints for Firefox")
	}
	if h.Get("Accept-Language") == "" {
		t.Errorf("expected Accept-Language to be set")
	}
}
