package transform

import (
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// CompletionList maps the edits of every item. An item whose main edit does
// not map is kept with the edit cleared, so the client falls back to
// inserting the label; additional edits that do not map are dropped.
func CompletionList(list *protocol.CompletionList, m Mapper) *protocol.CompletionList {
	if list == nil {
		return nil
	}
	out := &protocol.CompletionList{
		IsIncomplete: list.IsIncomplete,
		Items:        make([]protocol.CompletionItem, 0, len(list.Items)),
	}
	for _, item := range list.Items {
		item.TextEdit = completionEdit(item.TextEdit, m)
		item.AdditionalTextEdits = TextEdits(item.AdditionalTextEdits, m)
		out.Items = append(out.Items, item)
	}
	return out
}

// ClearEdits returns a copy of list with every item's edits removed.
func ClearEdits(list *protocol.CompletionList) *protocol.CompletionList {
	if list == nil {
		return nil
	}
	out := &protocol.CompletionList{
		IsIncomplete: list.IsIncomplete,
		Items:        make([]protocol.CompletionItem, 0, len(list.Items)),
	}
	for _, item := range list.Items {
		item.TextEdit = nil
		item.AdditionalTextEdits = nil
		out.Items = append(out.Items, item)
	}
	return out
}

func completionEdit(edit any, m Mapper) any {
	switch e := edit.(type) {
	case protocol.TextEdit:
		if r, ok := m.Range(e.Range); ok {
			return protocol.TextEdit{Range: r, NewText: e.NewText}
		}
	case *protocol.TextEdit:
		if e == nil {
			return nil
		}
		if r, ok := m.Range(e.Range); ok {
			return protocol.TextEdit{Range: r, NewText: e.NewText}
		}
	case protocol.InsertReplaceEdit:
		return insertReplaceEdit(e, m)
	case *protocol.InsertReplaceEdit:
		if e == nil {
			return nil
		}
		return insertReplaceEdit(*e, m)
	}
	return nil
}

func insertReplaceEdit(e protocol.InsertReplaceEdit, m Mapper) any {
	insert, ok := m.Range(e.Insert)
	if !ok {
		return nil
	}
	replace, ok := m.Range(e.Replace)
	if !ok {
		return nil
	}
	return protocol.InsertReplaceEdit{NewText: e.NewText, Insert: insert, Replace: replace}
}
