package account

import "solexplorer/pkg/models"

// Variant selects the primary section rendered for an account.
type Variant int

const (
	VariantUnknown Variant = iota
	VariantStake
	VariantToken
	VariantNonce
	VariantVote
	VariantSysvar
	VariantConfig
)

func (v Variant) String() string {
	switch v {
	case VariantStake:
		return "stake"
	case VariantToken:
		return "token"
	case VariantNonce:
		return "nonce"
	case VariantVote:
		return "vote"
	case VariantSysvar:
		return "sysvar"
	case VariantConfig:
		return "config"
	default:
		return "unknown"
	}
}

// MarshalText lets the variant appear by name in JSON output.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// programVariants is evaluated in order; the first matching program wins.
var programVariants = []struct {
	program string
	variant Variant
}{
	{"stake", VariantStake},
	{"spl-token", VariantToken},
	{"nonce", VariantNonce},
	{"vote", VariantVote},
	{"sysvar", VariantSysvar},
	{"config", VariantConfig},
}

// StakeView is the stake-specific payload forwarded to the stake section.
type StakeView struct {
	Kind       string                  `json:"kind"`
	Body       map[string]any          `json:"body,omitempty"`
	Activation *models.StakeActivation `json:"activation,omitempty"`
}

// View is the primary section selected for an account.
type View struct {
	Variant Variant             `json:"variant"`
	Data    *models.ProgramData `json:"-"`
	Stake   *StakeView          `json:"stake,omitempty"`
}

// Dispatch picks the primary view. It is total: missing details, missing
// data and unrecognised programs all map to VariantUnknown.
func Dispatch(details *models.AccountDetails) View {
	if details == nil || details.Data == nil {
		return View{Variant: VariantUnknown}
	}
	data := details.Data
	for _, pv := range programVariants {
		if data.Program != pv.program {
			continue
		}
		view := View{Variant: pv.variant, Data: data}
		if pv.variant == VariantStake {
			view.Stake = stakeView(data)
		}
		return view
	}
	return View{Variant: VariantUnknown, Data: data}
}

func stakeView(data *models.ProgramData) *StakeView {
	stake := data.Stake
	if stake == nil {
		stake = models.ClassifyStake(data.Parsed)
	}
	return &StakeView{Kind: stake.Kind, Body: stake.Body, Activation: data.Activation}
}
