package main

import "time"

// Employee is the sample record the commands operate on.
type Employee struct {
	EmployeeId  int    `db:"key;generated"`
	FullName    string `db:"required;length:100"`
	Email       string `db:"length:320"`
	Children    *int
	YearsWorked int `db:"Years"`
	HiredOn     time.Time
	Notes       string `db:"-"`
}

func (Employee) TableName() string { return "Employees" }
