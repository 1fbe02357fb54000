package helpers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"kafka:9092", "kafka2:9092"}, SplitAndTrim(" kafka:9092, ,kafka2:9092 ", ","))
	assert.Empty(t, SplitAndTrim("", ","))
}

func TestSanitizeStem(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"red-car_01", "red-car_01"},
		{"my car (1)", "my_car_1"},
		{"../../etc/passwd", "etc_passwd"},
		{"машина", "image"},
		{"", "image"},
		{"__--__", "image"},
		{strings.Repeat("a", 100), strings.Repeat("a", 64)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeStem(tt.in, "image"), tt.in)
	}
}

func TestURLStem(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://cdn.example.com/cars/bmw-x5.jpg?w=400", "bmw-x5"},
		{"https://cdn.example.com/", ""},
		{"https://cdn.example.com", ""},
		{"https://cdn.example.com/photo", "photo"},
		{"://bad", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, URLStem(tt.in), tt.in)
	}
}
