package gateway

// Operation selects which store action a request translates to.
type Operation string

const (
	OpPut    Operation = "put"
	OpGet    Operation = "get"
	OpQuery  Operation = "query"
	OpScan   Operation = "scan"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Request is the abstract envelope the gateway accepts. The gateway assumes
// no identity beyond table and key and holds no state between calls.
type Request struct {
	Operation Operation      `json:"operation"`
	Table     string         `json:"tableName"`
	Key       map[string]any `json:"key,omitempty"`
	Item      map[string]any `json:"item,omitempty"`
	Updates   map[string]any `json:"updates,omitempty"`
	Filters   map[string]any `json:"filters,omitempty"`
	Index     string         `json:"index,omitempty"`
	Limit     int            `json:"limit,omitempty"`

	// Cursor is opaque; callers echo it back unmodified to continue a
	// Query or Scan.
	Cursor string `json:"cursor,omitempty"`

	// ConsistentRead requests a strongly-consistent Get where read-after-write
	// correctness matters.
	ConsistentRead bool `json:"consistentRead,omitempty"`
}

// Response is the gateway's uniform reply envelope.
type Response struct {
	Success bool             `json:"success"`
	Items   []map[string]any `json:"items,omitempty"`
	Cursor  string           `json:"cursor,omitempty"`
}
