package catalog

import (
	"encoding/json"

	"github.com/andamio-erp/andamio-erp/internal/store"
)

func listsToDoc(lists Lists) (store.Doc, error) {
	raw, err := json.Marshal(lists)
	if err != nil {
		return nil, err
	}
	var doc store.Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func docToLists(doc store.Doc, lists *Lists) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, lists)
}
