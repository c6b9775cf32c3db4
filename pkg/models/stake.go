package models

// StakeKindUnknown is used when a stake payload carries no recognisable kind.
const StakeKindUnknown = "unknown"

// ClassifyStake turns either stake payload shape into a StakeAccount.
// A payload with an accountType field is the account body itself; otherwise
// the body is parsed.info and the kind is parsed.type.
func ClassifyStake(parsed map[string]any) *StakeAccount {
	if raw, ok := parsed["accountType"]; ok {
		kind, _ := raw.(string)
		if kind == "" {
			kind = StakeKindUnknown
		}
		return &StakeAccount{Kind: kind, Body: parsed}
	}
	body, _ := parsed["info"].(map[string]any)
	kind, _ := parsed["type"].(string)
	if kind == "" {
		kind = StakeKindUnknown
	}
	return &StakeAccount{Kind: kind, Body: body}
}
