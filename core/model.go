package core

import "time"

// Tag is a single protocol metadata pair. Order is significant and
// preserved through encoding.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (t Tag) String() string {
	return t.Name + ":" + t.Value
}

// FindTag returns the value of the first tag with the given name.
func FindTag(tags []Tag, name string) (string, bool) {
	for _, tag := range tags {
		if tag.Name == name {
			return tag.Value, true
		}
	}
	return "", false
}

// SchedulerLocation is a resolved process-to-endpoint mapping. Stale is
// set when the entry outlived its TTL but is still offered as a
// fallback.
type SchedulerLocation struct {
	Address    string        `json:"address"`
	URL        string        `json:"url"`
	TTL        time.Duration `json:"ttl"`
	ResolvedAt time.Time     `json:"resolvedAt"`
	Stale      bool          `json:"stale"`
}

func (l SchedulerLocation) FreshUntil() time.Time {
	return l.ResolvedAt.Add(l.TTL)
}

// DispatchResponse is the scheduler's acknowledgement of an accepted
// envelope or assignment.
type DispatchResponse struct {
	ID string `json:"id"`
}

// DryRunMessage is the unsigned message shape accepted by the compute
// endpoint for read-only simulation.
type DryRunMessage struct {
	ID     string `json:"Id,omitempty"`
	Target string `json:"Target"`
	Owner  string `json:"Owner,omitempty"`
	Anchor string `json:"Anchor,omitempty"`
	Data   string `json:"Data,omitempty"`
	Tags   []Tag  `json:"Tags,omitempty"`
}

// OutboundMessage is a message or spawn emitted by a process as part of
// a Result.
type OutboundMessage struct {
	Target string `json:"Target"`
	Anchor string `json:"Anchor,omitempty"`
	Data   string `json:"Data,omitempty"`
	Tags   []Tag  `json:"Tags,omitempty"`
}

// ResultOutput is the console-style output of an evaluation.
type ResultOutput struct {
	Data   any `json:"data,omitempty"`
	Prompt any `json:"prompt,omitempty"`
}

// Result is the computed outcome of a message.
type Result struct {
	Messages []OutboundMessage `json:"Messages"`
	Spawns   []OutboundMessage `json:"Spawns"`
	Output   ResultOutput      `json:"Output,omitempty"`
	Error    any               `json:"Error,omitempty"`
	GasUsed  int64             `json:"GasUsed,omitempty"`
}

// GatewayOwner identifies the wallet that signed a gateway transaction.
type GatewayOwner struct {
	Address string `json:"address"`
	Key     string `json:"key"`
}

// GatewayTransaction is a transaction record as returned by the
// directory gateway.
type GatewayTransaction struct {
	ID    string       `json:"id"`
	Owner GatewayOwner `json:"owner"`
	Tags  []Tag        `json:"tags"`
}
