package resource

// ListResponse is one page of a collection.
//
// All is the size of the whole collection, Results the number of Items on
// this page.
type ListResponse struct {
	Href     string     `json:"href"`
	Kind     Kind       `json:"kind,omitempty"`
	All      int        `json:"all"`
	Results  int        `json:"results"`
	PollRate int        `json:"pollRate,omitempty"`
	Items    []Resource `json:"items"`
}

// Name returns the wire name of the list, e.g. "EndDeviceList".
func (l *ListResponse) Name() string {
	return l.Kind.ListName()
}
