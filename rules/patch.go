package rules

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// PatchReplaceRule returns a copy of r with the values of set applied.
// Keys are the rule field names ("match", "ignore-case", ...); values are weakly typed
// so "t" and "true" both set a flag. Unknown keys are rejected.
func PatchReplaceRule(r MatchReplaceRule, set map[string]interface{}) (MatchReplaceRule, error) {
	if err := patch(&r, set); err != nil {
		return MatchReplaceRule{}, err
	}
	return r, r.Validate()
}

// PatchLabelRule returns a copy of r with the values of set applied.
func PatchLabelRule(r MatchLabelRule, set map[string]interface{}) (MatchLabelRule, error) {
	if err := patch(&r, set); err != nil {
		return MatchLabelRule{}, err
	}
	return r, r.Validate()
}

func patch(result interface{}, set map[string]interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           result,
		DecodeHook:       mapstructure.DecodeHookFuncKind(flagHook),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := dec.Decode(set); err != nil {
		return errors.Wrap(err, "failed to apply patch")
	}
	return nil
}

// flagHook accepts the "t"/"f" flags of the internal rule format for boolean fields.
func flagHook(from, to reflect.Kind, data interface{}) (interface{}, error) {
	if from != reflect.String || to != reflect.Bool {
		return data, nil
	}
	switch data.(string) {
	case "t", "T":
		return true, nil
	case "f", "F":
		return false, nil
	}
	return data, nil
}
