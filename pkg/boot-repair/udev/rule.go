package udev

import (
	"regexp"

	"github.com/pilebones/go-udev/netlink"
)

// GenRuleForPartitions matches the partitions of every block device
func GenRuleForPartitions() netlink.Matcher {
	return &netlink.RuleDefinitions{
		Rules: []netlink.RuleDefinition{
			{
				Env: map[string]string{
					"SUBSYSTEM": "block",
					"DEVTYPE":   "partition",
				},
			},
		},
	}
}

// ActionChange is the uevent action emitted after a partition table rewrite
const ActionChange = "change"

// GenRuleForChange matches change events of a single device node
func GenRuleForChange(devName string) netlink.Matcher {
	action := ActionChange
	return &netlink.RuleDefinitions{
		Rules: []netlink.RuleDefinition{
			{
				Action: &action,
				Env: map[string]string{
					"SUBSYSTEM": "block",
					"DEVNAME":   "^" + regexp.QuoteMeta(devName) + "$",
				},
			},
		},
	}
}
