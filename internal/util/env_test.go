package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("GAPBOT_TEST_FLAG", "yes")
	if !ParseBoolEnv("GAPBOT_TEST_FLAG", false) {
		t.Error("'yes' should parse as true")
	}
	t.Setenv("GAPBOT_TEST_FLAG", "0")
	if ParseBoolEnv("GAPBOT_TEST_FLAG", true) {
		t.Error("'0' should parse as false")
	}
	t.Setenv("GAPBOT_TEST_FLAG", "banana")
	if !ParseBoolEnv("GAPBOT_TEST_FLAG", true) {
		t.Error("invalid value should fall back to default")
	}
	if ParseBoolEnv("GAPBOT_UNSET_FLAG", false) {
		t.Error("unset value should fall back to default")
	}
}
