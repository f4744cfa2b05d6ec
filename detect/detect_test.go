package detect

import (
	"regexp"
	"testing"
	"time"

	"github.com/morganhein/netsync/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buffer(t *testing.T, chunks ...string) *stream.Buffer {
	t.Helper()
	b := &stream.Buffer{}
	for _, c := range chunks {
		require.NoError(t, b.Append([]byte(c)))
	}
	return b
}

func TestFixedDelay_IgnoresBuffer(t *testing.T) {
	delays := []time.Duration{0, time.Millisecond, time.Second, DefaultDelay}
	buffers := []*stream.Buffer{nil, buffer(t), buffer(t, "Router#"), buffer(t, "still going ")}

	for _, d := range delays {
		f := NewFixedDelay(d)
		for _, b := range buffers {
			if d > 0 {
				assert.False(t, f.IsComplete(b, 0))
				assert.False(t, f.IsComplete(b, d-time.Nanosecond))
			}
			assert.True(t, f.IsComplete(b, d))
			assert.True(t, f.IsComplete(b, d+time.Hour))
		}
	}
}

func TestFixedDelay_OneSecond(t *testing.T) {
	f := NewFixedDelay(time.Second)
	assert.False(t, f.IsComplete(buffer(t, "Router#"), 500*time.Millisecond))
	assert.True(t, f.IsComplete(buffer(t, "Router#"), time.Second))
}

func TestPromptTrailing(t *testing.T) {
	p := NewPromptTrailing()
	cases := []struct {
		name   string
		chunks []string
		want   bool
	}{
		{"empty buffer", nil, false},
		{"privileged prompt", []string{"Router#"}, true},
		{"password prompt with trailing space", []string{"Password: "}, true},
		{"user prompt", []string{"Router>"}, false},
		{"data line", []string{"interface line protocol up"}, false},
		{"space before hash", []string{"config t #"}, false},
		{"space before colon", []string{"Enter password :"}, false},
		{"prompt after output", []string{"Gi0/1 up down\r\n", "Router#"}, true},
		{"prompt then blank line", []string{"Router#\r\n"}, true},
		{"whitespace only", []string{" \r\n "}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, p.IsComplete(buffer(t, c.chunks...), time.Hour))
		})
	}
}

func TestPromptTrailing_NilBuffer(t *testing.T) {
	assert.False(t, NewPromptTrailing().IsComplete(nil, 0))
}

func TestPromptTrailing_SpaceAlwaysWaits(t *testing.T) {
	p := NewPromptTrailing()
	for _, line := range []string{"a #", "b :", "show run #", "x y"} {
		assert.False(t, p.IsComplete(buffer(t, line), 0), line)
	}
}

func TestPromptTrailing_NoSpaceHashAlwaysCompletes(t *testing.T) {
	p := NewPromptTrailing()
	for _, line := range []string{"#", "R1#", "switch(config-if)#", "core-01.lab#"} {
		assert.True(t, p.IsComplete(buffer(t, "output\n", line), 0), line)
	}
}

func TestPromptTrailing_CustomTerminators(t *testing.T) {
	p := PromptTrailing{Terminators: ">"}
	assert.True(t, p.IsComplete(buffer(t, "Router>"), 0))
	assert.False(t, p.IsComplete(buffer(t, "Router#"), 0))
}

func TestPromptTrailing_StreamsThenCompletes(t *testing.T) {
	p := NewPromptTrailing()
	b := buffer(t, "interface line protocol up")
	assert.False(t, p.IsComplete(b, 0))

	require.NoError(t, b.Append([]byte("\r\nRouter#")))
	assert.True(t, p.IsComplete(b, 0))
	assert.Contains(t, b.String(), "interface line protocol up")
	assert.Contains(t, b.String(), "Router#")
}

func TestPattern(t *testing.T) {
	p := NewPattern(nil)
	assert.True(t, p.IsComplete(buffer(t, "Router>"), 0))
	assert.True(t, p.IsComplete(buffer(t, "user@host:~$ "), 0))
	assert.True(t, p.IsComplete(buffer(t, "out\r\nRouter# "), 0))
	assert.False(t, p.IsComplete(buffer(t, "Password:"), 0))
	assert.False(t, p.IsComplete(buffer(t), 0))

	custom := NewPattern(regexp.MustCompile(`^RP/0/RSP0/CPU0:[\w-]+#$`))
	assert.True(t, custom.IsComplete(buffer(t, "RP/0/RSP0/CPU0:xr-1#"), 0))
	assert.False(t, custom.IsComplete(buffer(t, "Router#"), 0))
}

func TestFunc(t *testing.T) {
	var d Detector = Func(func(b *stream.Buffer, _ time.Duration) bool {
		return b.Len() > 3
	})
	assert.False(t, d.IsComplete(buffer(t, "abc"), 0))
	assert.True(t, d.IsComplete(buffer(t, "abcd"), 0))
}

func TestDetector_Variants(t *testing.T) {
	b := buffer(t, "show clock\r\n*10:00:00.000 UTC\r\nRouter#")
	for _, d := range []Detector{
		NewFixedDelay(time.Millisecond),
		NewPromptTrailing(),
		NewPattern(nil),
		Func(func(*stream.Buffer, time.Duration) bool { return true }),
	} {
		assert.True(t, d.IsComplete(b, time.Second), "%T", d)
	}
}
