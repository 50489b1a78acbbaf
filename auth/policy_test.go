package auth_test

import (
	"testing"

	"github.com/zkvault/zkvault/auth"
)

func TestValidateMasterPassword(t *testing.T) {
	cases := []struct {
		pw      string
		wantErr bool
	}{
		{"Str0ng!master-pass", false},
		{"short1!A", true},
		{"nouppercase1!aaa", true},
		{"NoDigitsHere!!aa", true},
		{"NoSpecials123aaa", true},
	}
	for _, tc := range cases {
		err := auth.ValidateMasterPassword(tc.pw)
		if tc.wantErr && err == nil {
			t.Errorf("%q: expected policy error", tc.pw)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%q: unexpected error %v", tc.pw, err)
		}
	}
}
