package api

import (
	"sort"
	"time"
)

// User is the account returned by the login endpoint.
type User struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Email    *string `json:"email"`
}

// LoginResponse is the payload of POST /login.
type LoginResponse struct {
	User       User   `json:"user"`
	SessionID  string `json:"sessionId"`
	EmployeeID string `json:"employeeId"`
}

// Organization is reference data; membership is resolved server-side.
type Organization struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	OrgPic *string `json:"orgPic"`
}

// Employee is a user's identity within one organization.
type Employee struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Email    *string  `json:"email"`
	Area     string   `json:"area"`
	AreaLat  float64  `json:"areaLat"`
	AreaLong float64  `json:"areaLong"`
	Space    float64  `json:"space"`
	LastLat  *float64 `json:"lastLat"`
	LastLong *float64 `json:"lastLong"`
}

// Schedule is a dated work assignment, as returned by the list endpoint.
type Schedule struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
	DepartAddress string    `json:"departAddress"`
	DepartTime    time.Time `json:"departTime"`
}

// Task describes one kind of work to be performed at a job order.
type Task struct {
	ID                string  `json:"id"`
	Task              string  `json:"task"`
	RequiredTimeValue float64 `json:"requiredTimeValue"`
	RequiredTimeUnit  string  `json:"requiredTimeUnit"` // "minutes" or "hours"
	SpaceNeeded       float64 `json:"spaceNeeded"`
}

// JobOrderTask links a task to a job order with a quantity.
type JobOrderTask struct {
	ID         string `json:"id"`
	JobOrderID string `json:"jobOrderId"`
	TaskID     string `json:"taskId"`
	Quantity   int    `json:"quantity"`
	Task       Task   `json:"task"`
}

// Job order statuses. Read-only in this client; never mutated here.
const (
	StatusUnscheduled = "unscheduled"
	StatusTodo        = "todo"
	StatusInProgress  = "inprogress"
	StatusCompleted   = "completed"
)

// JobOrder is a single work stop within a schedule.
type JobOrder struct {
	ID             string         `json:"id"`
	OrderNumber    string         `json:"orderNumber"`
	CreatedAt      time.Time      `json:"createdAt"`
	Address        string         `json:"address"`
	City           string         `json:"city"`
	PostCode       string         `json:"postCode"`
	State          string         `json:"state"`
	Country        string         `json:"country"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	SpaceRequired  float64        `json:"spaceRequried"` // field name misspelled server-side
	Status         string         `json:"status"`
	ScheduledOrder *int           `json:"scheduledOrder"`
	Tasks          []JobOrderTask `json:"JobOrderTask"`
}

// ScheduleDetails is the full schedule with its job orders.
type ScheduleDetails struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	OrgID         string     `json:"orgId"`
	CreatedAt     time.Time  `json:"createdAt"`
	DepartAddress string     `json:"departAddress"`
	DepartCity    string     `json:"departCity"`
	DepartLat     float64    `json:"departLatitude"`
	DepartLong    float64    `json:"departLongitude"`
	DepartTime    time.Time  `json:"departTime"`
	JobOrders     []JobOrder `json:"jobOrder"`
}

// LocationSample is one position report. It exists only in transit:
// a dropped sample is not queued or replayed.
type LocationSample struct {
	UserID     string  `json:"userId"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	ScheduleID string  `json:"scheduleId"`
	OrgID      string  `json:"orgId"`
}

// LocationRecord is a stored position as returned by the history endpoint.
type LocationRecord struct {
	ID         string  `json:"id"`
	UserID     string  `json:"userId"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	ScheduleID string  `json:"scheduleId"`
	OrgID      string  `json:"orgId"`
	CreatedAt  string  `json:"createdAt"`
}

// SortJobOrders orders job orders by scheduledOrder ascending, treating a
// missing value as 0. The sort is stable: ties keep their fetch order.
func SortJobOrders(orders []JobOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		return scheduledOrder(orders[i]) < scheduledOrder(orders[j])
	})
}

func scheduledOrder(o JobOrder) int {
	if o.ScheduledOrder == nil {
		return 0
	}
	return *o.ScheduledOrder
}
