package app

import (
	"reflect"
	"testing"
	"time"
)

func TestEnvInt(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{in: "", want: 7},
		{in: "12", want: 12},
		{in: " 3 ", want: 3},
		{in: "0", want: 7},
		{in: "-4", want: 7},
		{in: "x", want: 7},
	}

	for _, tc := range cases {
		t.Setenv("LINECHAT_TEST_INT", tc.in)
		if got := EnvInt("LINECHAT_TEST_INT", 7); got != tc.want {
			t.Fatalf("EnvInt(%q)=%d want=%d", tc.in, got, tc.want)
		}
	}
}

func TestEnvInt32(t *testing.T) {
	cases := []struct {
		in   string
		want int32
	}{
		{in: "", want: 2},
		{in: "0", want: 0},
		{in: "9", want: 9},
		{in: "-1", want: 2},
		{in: "99999999999", want: 2},
	}

	for _, tc := range cases {
		t.Setenv("LINECHAT_TEST_INT32", tc.in)
		if got := EnvInt32("LINECHAT_TEST_INT32", 2); got != tc.want {
			t.Fatalf("EnvInt32(%q)=%d want=%d", tc.in, got, tc.want)
		}
	}
}

func TestEnvBool(t *testing.T) {
	cases := []struct {
		in   string
		def  bool
		want bool
	}{
		{in: "", def: true, want: true},
		{in: "true", def: false, want: true},
		{in: "0", def: true, want: false},
		{in: "maybe", def: true, want: true},
	}

	for _, tc := range cases {
		t.Setenv("LINECHAT_TEST_BOOL", tc.in)
		if got := EnvBool("LINECHAT_TEST_BOOL", tc.def); got != tc.want {
			t.Fatalf("EnvBool(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestEnvDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{in: "", want: time.Second},
		{in: "1500ms", want: 1500 * time.Millisecond},
		{in: "0s", want: time.Second},
		{in: "-2s", want: time.Second},
		{in: "soon", want: time.Second},
	}

	for _, tc := range cases {
		t.Setenv("LINECHAT_TEST_DURATION", tc.in)
		if got := EnvDuration("LINECHAT_TEST_DURATION", time.Second); got != tc.want {
			t.Fatalf("EnvDuration(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestEnvCSV(t *testing.T) {
	def := []string{"fallback"}

	cases := []struct {
		in   string
		want []string
	}{
		{in: "", want: def},
		{in: " , ,", want: def},
		{in: "a", want: []string{"a"}},
		{in: " a , b,,c ", want: []string{"a", "b", "c"}},
	}

	for _, tc := range cases {
		t.Setenv("LINECHAT_TEST_CSV", tc.in)
		if got := EnvCSV("LINECHAT_TEST_CSV", def); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("EnvCSV(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}
