package domain

// Models lists every persisted type, in migration order.
func Models() []interface{} {
	return []interface{}{
		&Principal{},
		&AppUser{},
		&Property{},
		&Job{},
		&Appointment{},
		&Invitation{},
	}
}
