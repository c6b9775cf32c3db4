package account

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solexplorer/pkg/models"
)

// PageState is where one render pass of the account page ended up.
type PageState int

const (
	PageInvalid PageState = iota
	PageLoading
	PageFailed
	PageDisplay
	PageRedirect
)

func (s PageState) String() string {
	switch s {
	case PageLoading:
		return "loading"
	case PageFailed:
		return "failed"
	case PageDisplay:
		return "display"
	case PageRedirect:
		return "redirect"
	default:
		return "invalid"
	}
}

func (s PageState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Page is the full resolution of an account page for one fetch state snapshot.
type Page struct {
	Address    string           `json:"address"`
	Key        solana.PublicKey `json:"-"`
	State      PageState        `json:"state"`
	Err        error            `json:"-"`
	Message    string           `json:"message,omitempty"`
	Account    *models.Account  `json:"account,omitempty"`
	View       View             `json:"view"`
	Tabs       []Tab            `json:"tabs,omitempty"`
	Tab        TabSlug          `json:"tab,omitempty"`
	RedirectTo string           `json:"redirect_to,omitempty"`
}

// StatusFunc reads the current fetch state of a key.
type StatusFunc func(key solana.PublicKey) models.FetchState

// BuildPage runs the whole pipeline for a single render pass. It is pure for
// a given status snapshot.
func BuildPage(raw, requestedTab string, status StatusFunc) Page {
	page := Page{Address: raw}

	key, err := ValidateAddress(raw)
	if err != nil {
		page.State = PageInvalid
		page.Err = err
		page.Message = InvalidAddressText(raw)
		return page
	}
	page.Key = key
	page.Address = key.String()

	state := status(key)
	switch {
	case state.Status == models.FetchNotRequested || state.Status == models.Fetching:
		page.State = PageLoading
		return page
	case state.Status == models.FetchFailed:
		page.State = PageFailed
		page.Err = fmt.Errorf("%w: %v", ErrFetchFailed, state.Err)
		page.Message = "Fetch Failed"
		return page
	case state.Account == nil || state.Account.Lamports == nil:
		// A successful fetch without a balance is treated as a failed one.
		page.State = PageFailed
		page.Err = fmt.Errorf("%w: account has no lamports", ErrFetchFailed)
		page.Message = "Fetch Failed"
		return page
	}

	page.Account = state.Account
	var data *models.ProgramData
	if state.Account.Details != nil {
		data = state.Account.Details.Data
	}
	page.View = Dispatch(state.Account.Details)
	page.Tabs = ResolveTabs(data)

	guard := Guard(requestedTab, page.Tabs, AddressPath(page.Address))
	if guard.Redirect {
		page.State = PageRedirect
		page.RedirectTo = guard.RedirectTo
		return page
	}
	page.State = PageDisplay
	page.Tab = guard.Tab
	return page
}

// Bridge is the fetch collaborator the page controller drives.
type Bridge interface {
	Status(key solana.PublicKey) models.FetchState
	Observe(key solana.PublicKey)
	Refetch(key solana.PublicKey)
}

// Controller resolves pages against a live fetch bridge.
type Controller struct {
	bridge Bridge
}

func NewController(bridge Bridge) *Controller {
	return &Controller{bridge: bridge}
}

// Load validates the address, lets the bridge start a fetch if the account
// has never been requested, and resolves the page from the current state.
func (c *Controller) Load(raw, requestedTab string) Page {
	if key, err := ValidateAddress(raw); err == nil {
		c.bridge.Observe(key)
	}
	return BuildPage(raw, requestedTab, c.bridge.Status)
}

// Retry refetches a failed account and resolves the page again.
func (c *Controller) Retry(raw, requestedTab string) Page {
	if key, err := ValidateAddress(raw); err == nil {
		c.bridge.Refetch(key)
	}
	return BuildPage(raw, requestedTab, c.bridge.Status)
}
