package datatypes

import (
	"slices"
	"sync"
)

// Static data sources with fixed field declarations.
const (
	DataSourceTimeEntries = "timeEntries"
	DataSourceTasks       = "tasks"
	DataSourceTickets     = "tickets"
	DataSourceProjects    = "projects"
	DataSourceApprovals   = "approvals"
)

var staticFields = map[string][]Field{
	DataSourceTimeEntries: {
		{Key: "project", Label: "Project", Type: DataTypeText},
		{Key: "task", Label: "Task", Type: DataTypeText},
		{Key: "user", Label: "User", Type: DataTypeText},
		{Key: "date", Label: "Date", Type: DataTypeDate},
		{Key: "hours", Label: "Hours", Type: DataTypeNumber},
		{Key: "billable", Label: "Billable", Type: DataTypeText},
		{Key: "status", Label: "Status", Type: DataTypeText},
	},
	DataSourceTasks: {
		{Key: "project", Label: "Project", Type: DataTypeText},
		{Key: "title", Label: "Title", Type: DataTypeText},
		{Key: "status", Label: "Status", Type: DataTypeText},
		{Key: "priority", Label: "Priority", Type: DataTypeText},
		{Key: "assignee", Label: "Assignee", Type: DataTypeText},
		{Key: "dueDate", Label: "Due Date", Type: DataTypeDate},
		{Key: "estimatedHours", Label: "Estimated Hours", Type: DataTypeNumber},
		{Key: "actualHours", Label: "Actual Hours", Type: DataTypeNumber},
		{Key: "createdAt", Label: "Created", Type: DataTypeDate},
	},
	DataSourceTickets: {
		{Key: "project", Label: "Project", Type: DataTypeText},
		{Key: "subject", Label: "Subject", Type: DataTypeText},
		{Key: "status", Label: "Status", Type: DataTypeText},
		{Key: "priority", Label: "Priority", Type: DataTypeText},
		{Key: "type", Label: "Type", Type: DataTypeText},
		{Key: "reporter", Label: "Reporter", Type: DataTypeText},
		{Key: "assignee", Label: "Assignee", Type: DataTypeText},
		{Key: "createdAt", Label: "Created", Type: DataTypeDate},
		{Key: "resolvedAt", Label: "Resolved", Type: DataTypeDate},
	},
	DataSourceProjects: {
		{Key: "organization", Label: "Organization", Type: DataTypeText},
		{Key: "name", Label: "Name", Type: DataTypeText},
		{Key: "status", Label: "Status", Type: DataTypeText},
		{Key: "manager", Label: "Manager", Type: DataTypeText},
		{Key: "startDate", Label: "Start Date", Type: DataTypeDate},
		{Key: "endDate", Label: "End Date", Type: DataTypeDate},
		{Key: "budget", Label: "Budget", Type: DataTypeNumber},
	},
	DataSourceApprovals: {
		{Key: "project", Label: "Project", Type: DataTypeText},
		{Key: "user", Label: "User", Type: DataTypeText},
		{Key: "weekStart", Label: "Week Start", Type: DataTypeDate},
		{Key: "status", Label: "Status", Type: DataTypeText},
		{Key: "approver", Label: "Approver", Type: DataTypeText},
		{Key: "totalHours", Label: "Total Hours", Type: DataTypeNumber},
	},
}

// Registry resolves the field declarations of a data source. Fixed data sources are declared
// statically, while dynamic ones (ad-hoc joins, introspected tables) are added with Register.
type Registry struct {
	lock    sync.RWMutex
	dynamic map[string][]Field
}

func NewRegistry() *Registry {
	return &Registry{dynamic: make(map[string][]Field)}
}

// Returns a copy of the fields declared for the given data source. Unknown data sources yield an
// empty list.
func (registry *Registry) Fields(dataSourceID string) []Field {
	if fields, ok := staticFields[dataSourceID]; ok {
		return slices.Clone(fields)
	}

	registry.lock.RLock()
	defer registry.lock.RUnlock()

	if fields, ok := registry.dynamic[dataSourceID]; ok {
		return slices.Clone(fields)
	}
	return []Field{}
}

// Registers the fields of a dynamic data source, replacing any previous registration under the
// same ID. Static data sources cannot be overridden.
func (registry *Registry) Register(dataSourceID string, fields []Field) bool {
	if IsStaticDataSource(dataSourceID) {
		return false
	}

	registry.lock.Lock()
	defer registry.lock.Unlock()

	registry.dynamic[dataSourceID] = slices.Clone(fields)
	return true
}

func (registry *Registry) DataSources() []string {
	registry.lock.RLock()
	defer registry.lock.RUnlock()

	ids := make([]string, 0, len(staticFields)+len(registry.dynamic))
	for id := range staticFields {
		ids = append(ids, id)
	}
	for id := range registry.dynamic {
		ids = append(ids, id)
	}

	slices.Sort(ids)
	return ids
}

func IsStaticDataSource(dataSourceID string) bool {
	_, ok := staticFields[dataSourceID]
	return ok
}
