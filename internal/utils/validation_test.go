package utils

import (
	"testing"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name     string
		err      ValidationError
		expected string
	}{
		{
			name:     "error with field",
			err:      ValidationError{Field: "engine", Value: "", Message: "cannot be empty"},
			expected: "validation error for field 'engine': cannot be empty",
		},
		{
			name:     "error without field",
			err:      ValidationError{Message: "invalid format"},
			expected: "validation error: invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNotEmpty(t *testing.T) {
	validator := NotEmpty("test_field")

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid string", "hello", false},
		{"empty string", "", true},
		{"whitespace only", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("NotEmpty() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsOneOf(t *testing.T) {
	validator := IsOneOf("engine", "echo", "gin", "fiber")

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"echo", "echo", false},
		{"fiber", "fiber", false},
		{"unknown", "chi", true},
		{"case matters", "Echo", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("IsOneOf() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAtLeast(t *testing.T) {
	validator := AtLeast("max-size", 0)

	for value, wantErr := range map[int]bool{-1: true, 0: false, 20: false} {
		if err := validator(value); (err != nil) != wantErr {
			t.Errorf("AtLeast(%d) error = %v, wantErr %v", value, err, wantErr)
		}
	}
}

func TestValidateEach(t *testing.T) {
	validator := ValidateEach("sources", NotEmpty("source"))

	if err := validator([]string{"./...", "internal"}); err != nil {
		t.Errorf("ValidateEach() unexpected error = %v", err)
	}
	err := validator([]string{"./...", ""})
	if err == nil {
		t.Fatal("ValidateEach() expected an error")
	}
	if got := err.(ValidationError).Field; got != "sources[1]" {
		t.Errorf("ValidateEach() field = %q, want sources[1]", got)
	}
}

func TestValidatorChain(t *testing.T) {
	chain := NewValidatorChain(
		NotEmpty("address"),
		Custom("address", "must not be the wildcard", func(s string) bool { return s != "*" }),
	)

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid", ":8080", false},
		{"empty string", "", true},
		{"wildcard", "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := chain.Validate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatorChain.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConditional(t *testing.T) {
	validator := Conditional(
		func(s string) bool { return s != "" },
		ValidateListenAddress("address"),
	)

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid address", "127.0.0.1:9090", false},
		{"invalid address", "localhost", true},
		{"empty string (skipped)", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Conditional() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDuration(t *testing.T) {
	validator := ValidateDuration("timeout")

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"empty", "", false},
		{"minutes", "5m", false},
		{"zero", "0s", false},
		{"negative", "-1s", true},
		{"bare number", "100", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDuration() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateListenAddress(t *testing.T) {
	validator := ValidateListenAddress("address")

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"port only", ":9090", false},
		{"host and port", "localhost:8080", false},
		{"ipv6", "[::1]:8080", false},
		{"empty", "", true},
		{"missing port", "localhost", true},
		{"named port", "localhost:http", true},
		{"port out of range", ":70000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateListenAddress() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
