package feed

import (
	"time"
)

// Situation is one disruption record parsed out of the feed. A single
// situation may affect several lines; Lines carries every reference the
// record names, never just the first.
type Situation struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Progress    string     `json:"progress"`
	Start       time.Time  `json:"valid_from"`
	End         *time.Time `json:"valid_to,omitempty"`
	Lines       []string   `json:"lines"`
}

// Result is the outcome of one logical fetch across all pages.
// Truncated is set when a ceiling (page count, wall clock, or rate budget)
// stopped the pagination loop early; that is a degraded-but-usable result,
// not an error.
type Result struct {
	Situations []Situation
	Pages      int
	Truncated  bool
	FetchedAt  time.Time
}

// Wire types for the SIRI-SX REST body. The upstream nests everything
// under Siri.ServiceDelivery; MoreData signals another page is available
// for the same requestorId.

type siriEnvelope struct {
	Siri struct {
		ServiceDelivery serviceDelivery `json:"ServiceDelivery"`
	} `json:"Siri"`
}

type serviceDelivery struct {
	MoreData                  bool                 `json:"MoreData"`
	SituationExchangeDelivery []situationExchange `json:"SituationExchangeDelivery"`
}

type situationExchange struct {
	Situations struct {
		PtSituationElement []ptSituationElement `json:"PtSituationElement"`
	} `json:"Situations"`
}

type ptSituationElement struct {
	SituationNumber valueField       `json:"SituationNumber"`
	Progress        string           `json:"Progress"`
	ValidityPeriod  []validityPeriod `json:"ValidityPeriod"`
	Summary         []valueField     `json:"Summary"`
	Description     []valueField     `json:"Description"`
	Affects         struct {
		Networks *struct {
			AffectedNetwork []affectedNetwork `json:"AffectedNetwork"`
		} `json:"Networks"`
	} `json:"Affects"`
}

type validityPeriod struct {
	StartTime string `json:"StartTime"`
	EndTime   string `json:"EndTime"`
}

type affectedNetwork struct {
	AffectedLine []struct {
		LineRef valueField `json:"LineRef"`
	} `json:"AffectedLine"`
}

type valueField struct {
	Value string `json:"value"`
}
