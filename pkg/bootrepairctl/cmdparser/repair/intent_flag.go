package repair

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/hwameistor/bootrepair/pkg/apis/bootrepair/v1alpha1"
)

// intentValue is a pflag.Value accepting the known repair intents only
type intentValue v1alpha1.RepairIntent

var _ pflag.Value = new(intentValue)

func (v *intentValue) String() string {
	return string(*v)
}

func (v *intentValue) Set(s string) error {
	intent := strings.ToLower(strings.TrimSpace(s))
	if err := v1alpha1.ValidateIntent(intent); err != nil {
		return err
	}
	*v = intentValue(intent)
	return nil
}

func (v *intentValue) Type() string {
	return "action"
}
