package tracing

import (
	"context"
	"testing"
	"time"

	"mercator-hq/rulekeeper/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
		enabled bool
	}{
		{name: "nil config", config: nil, wantErr: true},
		{name: "disabled", config: &config.TracingConfig{Enabled: false}},
		{
			name: "always sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Endpoint:    "localhost:4317",
				Insecure:    true,
				Sampler:     SamplerAlways,
				ServiceName: "rulekeeper-test",
				Timeout:     time.Second,
			},
			enabled: true,
		},
		{
			name: "ratio sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Endpoint:    "localhost:4317",
				Insecure:    true,
				Sampler:     SamplerRatio,
				SampleRatio: 0.5,
				ServiceName: "rulekeeper-test",
			},
			enabled: true,
		},
		{
			name: "unknown sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Endpoint: "localhost:4317",
				Sampler:  "sometimes",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if tracer.Enabled() != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.enabled)
			}

			_, span := tracer.Start(context.Background(), "test")
			span.End()

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_ = tracer.Shutdown(ctx)
		})
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{strategy: SamplerAlways},
		{strategy: ""},
		{strategy: SamplerNever},
		{strategy: SamplerRatio, ratio: 0.25},
		{strategy: SamplerRatio, ratio: 1.5, wantErr: true},
		{strategy: SamplerRatio, ratio: -0.1, wantErr: true},
		{strategy: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		sampler, err := createSampler(tt.strategy, tt.ratio)
		if (err != nil) != tt.wantErr {
			t.Errorf("createSampler(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && sampler == nil {
			t.Errorf("createSampler(%q) returned nil sampler", tt.strategy)
		}
	}
}
