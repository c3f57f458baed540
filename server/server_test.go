package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campushq/corekit/logger"
)

func TestServer_StartServeStop(t *testing.T) {
	srv := New(Config{Host: "127.0.0.1", Port: 0}, logger.NewDefault("test"))
	srv.ApplyMiddleware()
	srv.GinEngine().GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if id := resp.Header.Get("X-Request-Id"); id == "" {
		t.Error("expected a request ID header")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if _, err := http.Get("http://" + srv.Addr() + "/ping"); err == nil {
		t.Error("expected request to fail after shutdown")
	}
}

func TestServer_RequestIDPropagated(t *testing.T) {
	srv := New(Config{Host: "127.0.0.1", Port: 0}, logger.NewDefault("test"))
	srv.ApplyMiddleware()
	srv.GinEngine().GET("/echo", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	req, _ := http.NewRequest(http.MethodGet, "http://"+srv.Addr()+"/echo", nil)
	req.Header.Set("X-Request-Id", "req-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "req-123" {
		t.Errorf("expected incoming request ID kept, got %q", body)
	}
}

func TestServer_RecoveryMiddleware(t *testing.T) {
	srv := New(Config{Host: "127.0.0.1", Port: 0}, logger.NewDefault("test"))
	srv.ApplyMiddleware()
	srv.GinEngine().GET("/boom", func(*gin.Context) {
		panic("handler exploded")
	})

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	resp, err := http.Get("http://" + srv.Addr() + "/boom")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500 from recovered panic, got %d", resp.StatusCode)
	}
}

func TestConfig_Validate(t *testing.T) {
	bad := Config{Port: 70000}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for out-of-range port")
	}

	good := Config{}
	good.ApplyDefaults()
	if err := good.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}
