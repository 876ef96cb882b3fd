package model

// All lists every table owned by the service, in migration order.
func All() []interface{} {
	return []interface{}{
		&ChatSession{},
		&ChatTurn{},
		&KnowledgeCollection{},
		&KnowledgeItem{},
	}
}
