package database_test

import (
	"github.com/kozaktomas/facegate/internal/database"
	"github.com/kozaktomas/facegate/internal/database/mock"
	"github.com/kozaktomas/facegate/internal/database/mongo"
	"github.com/kozaktomas/facegate/internal/database/postgres"
)

// Compile-time checks that every backend satisfies the store interface.
var (
	_ database.EmployeeStore = (*mock.EmployeeStore)(nil)
	_ database.EmployeeStore = (*mongo.EmployeeRepository)(nil)
	_ database.EmployeeStore = (*postgres.EmployeeRepository)(nil)
)
