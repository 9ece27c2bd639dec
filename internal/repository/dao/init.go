package dao

import "gorm.io/gorm"

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&Operator{},
		&Event{},
		&TicketCategory{},
		&Registration{},
		&Ticket{},
		&Reservation{},
		&AttendanceRecord{},
	)
}
