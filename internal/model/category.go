package model

type Category string

const (
	CategoryVIP      Category = "vip"
	CategoryFloor    Category = "floor"
	CategoryCat1     Category = "cat1"
	CategoryCat2     Category = "cat2"
	CategoryCat3     Category = "cat3"
	CategoryStanding Category = "standing"
)

type CategoryInfo struct {
	Name  string
	Color string
	Rank  int
}

var categories = map[Category]CategoryInfo{
	CategoryVIP:      {Name: "VIP", Color: "#f59e0b", Rank: 0},
	CategoryFloor:    {Name: "Floor", Color: "#ec4899", Rank: 1},
	CategoryCat1:     {Name: "Category 1", Color: "#8b5cf6", Rank: 2},
	CategoryCat2:     {Name: "Category 2", Color: "#3b82f6", Rank: 3},
	CategoryCat3:     {Name: "Category 3", Color: "#06b6d4", Rank: 4},
	CategoryStanding: {Name: "Standing", Color: "#10b981", Rank: 5},
}

func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

func (c Category) Info() CategoryInfo {
	return categories[c]
}

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{CategoryVIP, CategoryFloor, CategoryCat1, CategoryCat2, CategoryCat3, CategoryStanding}
}

type EventType string

const (
	EventMatch      EventType = "match"
	EventConcert    EventType = "concert"
	EventTrain      EventType = "train"
	EventAttraction EventType = "attraction"
	EventFestival   EventType = "festival"
	EventF1         EventType = "f1"
	EventTennis     EventType = "tennis"
)

func (t EventType) Valid() bool {
	switch t {
	case EventMatch, EventConcert, EventTrain, EventAttraction, EventFestival, EventF1, EventTennis:
		return true
	}
	return false
}
