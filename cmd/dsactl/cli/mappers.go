package cli

import (
	"reflect"

	"github.com/alecthomas/kong"
)

// treeIDMapper creates a Kong mapper for TreeID.
func treeIDMapper() kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto("tree-id", &s); err != nil {
			return err
		}
		id, err := ParseTreeID(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(id))
		return nil
	}
}

// macAddrMapper creates a Kong mapper for MACAddr.
func macAddrMapper() kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto("mac", &s); err != nil {
			return err
		}
		mac, err := ParseMACAddr(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(mac))
		return nil
	}
}
