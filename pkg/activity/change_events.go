package activity

import "strings"

// PropertyChanged builds the event for a write of property on obj. The
// object type defaults to "object".
func PropertyChanged(obj Object, property string) Event {
	return changeEvent(obj, "object", Change{Property: property, Index: NoIndex})
}

// CollectionChanged builds the event for a collection change on obj. The
// verb is "collection.<action>" and index is NoIndex when the change has no
// position. The object type defaults to "collection".
func CollectionChanged(obj Object, action string, items []any, index int) Event {
	return changeEvent(obj, "collection", Change{Action: action, Items: items, Index: index})
}

func changeEvent(obj Object, defaultType string, change Change) Event {
	objectType := strings.TrimSpace(obj.Type)
	if objectType == "" {
		objectType = defaultType
	}
	objectID := strings.TrimSpace(obj.ID)
	if objectID == "" {
		objectID = objectType
	}
	return NormalizeEvent(Event{
		ObjectType: objectType,
		ObjectID:   objectID,
		Change:     change,
	})
}
