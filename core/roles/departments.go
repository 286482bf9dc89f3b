package roles

import (
	"sort"
	"strings"

	"cityfix/core/store"
)

type Department string

const (
	DeptWaterNetwork       Department = "WATER_NETWORK_TECHNICIAN"
	DeptSewerage           Department = "SEWERAGE_TECHNICIAN"
	DeptAccessibility      Department = "ACCESSIBILITY_TECHNICIAN"
	DeptPublicLighting     Department = "PUBLIC_LIGHTING_TECHNICIAN"
	DeptElectricalGrid     Department = "ELECTRICAL_GRID_TECHNICIAN"
	DeptWasteManagement    Department = "WASTE_MANAGEMENT_TECHNICIAN"
	DeptTrafficSignals     Department = "TRAFFIC_SIGNALS_TECHNICIAN"
	DeptRoadMaintenance    Department = "ROAD_MAINTENANCE_TECHNICIAN"
	DeptUrbanFurnishings   Department = "URBAN_FURNISHINGS_TECHNICIAN"
	DeptGreenAreas         Department = "GREEN_AREAS_TECHNICIAN"
	DeptPlaygroundSafety   Department = "PLAYGROUND_SAFETY_TECHNICIAN"
	DeptGeneralMaintenance Department = "GENERAL_MAINTENANCE_TECHNICIAN"
)

var departmentCategories = map[Department][]store.Category{
	DeptWaterNetwork:       {store.CategoryWaterSupply},
	DeptSewerage:           {store.CategorySewerSystem},
	DeptAccessibility:      {store.CategoryArchitectural},
	DeptPublicLighting:     {store.CategoryPublicLighting},
	DeptElectricalGrid:     {store.CategoryPublicLighting, store.CategoryRoadSigns},
	DeptWasteManagement:    {store.CategoryWaste},
	DeptTrafficSignals:     {store.CategoryRoadSigns},
	DeptRoadMaintenance:    {store.CategoryRoadsFurnishings},
	DeptUrbanFurnishings:   {store.CategoryRoadsFurnishings, store.CategoryArchitectural},
	DeptGreenAreas:         {store.CategoryGreenAreas},
	DeptPlaygroundSafety:   {store.CategoryGreenAreas},
	DeptGeneralMaintenance: {store.CategoryOther},
}

func Departments() []Department {
	out := make([]Department, 0, len(departmentCategories))
	for d := range departmentCategories {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func ParseDepartment(raw string) (Department, bool) {
	d := Department(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := departmentCategories[d]
	return d, ok
}

func (d Department) Handles(c store.Category) bool {
	for _, item := range departmentCategories[d] {
		if item == c {
			return true
		}
	}
	return false
}

// DepartmentsFor returns the departments owning category, sorted by name.
func DepartmentsFor(c store.Category) []Department {
	var out []Department
	for d, cats := range departmentCategories {
		for _, item := range cats {
			if item == c {
				out = append(out, d)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func DepartmentRoleNames(c store.Category) []string {
	depts := DepartmentsFor(c)
	out := make([]string, 0, len(depts))
	for _, d := range depts {
		out = append(out, string(d))
	}
	return out
}
