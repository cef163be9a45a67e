// Package events receives entity change notifications and turns them into
// queue work.
package events

// Change is one entity change notification. EntityType uses the queue's
// entity type codes. An empty StoreIDs slice, or one containing only the
// admin scope 0, means the change applies to every store.
type Change struct {
	EntityID   int64  `json:"entity_id"`
	EntityType string `json:"entity_type"`
	StoreIDs   []int  `json:"store_ids"`
}

// Classifier maps published event names to entity type codes.
type Classifier interface {
	Classify(event string) (entityType string, ok bool)
}

// TypeClassifier recognizes the standard catalog and content change events.
type TypeClassifier struct{}

func (TypeClassifier) Classify(event string) (string, bool) {
	switch event {
	case "product_changed":
		return "product", true
	case "category_changed":
		return "category", true
	case "page_changed":
		return "cms_page", true
	default:
		return "", false
	}
}
