package backend

import "testing"

func TestNewCompletionRequestDefaults(t *testing.T) {
	req := NewCompletionRequest([]CompletionMessage{NewSystemMessage("sys"), NewUserMessage("hi")})
	if req.MaxTokens != DefaultMaxTokens || req.Temperature != TemperatureDefault {
		t.Errorf("unexpected defaults: %+v", req)
	}
	if req.Format != FormatText {
		t.Errorf("expected text format by default, got %q", req.Format)
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := SplitSystem([]CompletionMessage{
		NewSystemMessage("one"),
		NewUserMessage("question"),
		NewSystemMessage("two"),
	})
	if system != "one\n\ntwo" {
		t.Errorf("unexpected system prompt %q", system)
	}
	if len(rest) != 1 || rest[0].Role != RoleUser {
		t.Errorf("unexpected remaining messages %+v", rest)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{APIKey: "k", ModelName: "m", MaxTokens: 100, Temperature: 0.5}
	tests := []struct {
		name       string
		mutate     func(c *Config)
		requireKey bool
		wantErr    bool
	}{
		{"valid", func(*Config) {}, true, false},
		{"missing key", func(c *Config) { c.APIKey = "" }, true, true},
		{"missing key allowed", func(c *Config) { c.APIKey = "" }, false, false},
		{"missing model", func(c *Config) { c.ModelName = "" }, true, true},
		{"zero tokens", func(c *Config) { c.MaxTokens = 0 }, true, true},
		{"hot temperature", func(c *Config) { c.Temperature = 2.5 }, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(tt.requireKey); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
