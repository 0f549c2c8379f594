package poi

import "time"

// Categories and massifs mirror the values accepted by the directory;
// anything else is rejected at submission time.
var Categories = []string{"Bivouac", "Cabane", "Refuge"}

var Massifs = []string{
	"Mont Blanc", "Vanoise", "Écrins", "Queyras", "Mercantour",
	"Vercors", "Chartreuse", "Bauges", "Aravis", "Belledonne",
}

var SunExpositions = []string{
	"Nord", "Sud", "Est", "Ouest",
	"Nord-Est", "Nord-Ouest", "Sud-Est", "Sud-Ouest",
}

const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusRejected = "rejected"
)

const MaxPhotos = 10

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type POI struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Category      string      `json:"category"`
	Massif        string      `json:"massif"`
	Coordinates   Coordinates `json:"coordinates"`
	Description   string      `json:"description"`
	Altitude      int         `json:"altitude"`
	SunExposition string      `json:"sunExposition,omitempty"`
	Photos        []string    `json:"photos"`
	Likes         int         `json:"likes"`
	Comments      []Comment   `json:"comments,omitempty"`
	CreatedBy     string      `json:"createdBy"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type Comment struct {
	ID     string    `json:"id"`
	Author string    `json:"author"`
	UserID string    `json:"userId"`
	Text   string    `json:"text"`
	Date   time.Time `json:"date"`
}

type ListFilter struct {
	Category string
	Massif   string
	Search   string
	Status   string
}

func ValidCategory(c string) bool { return contains(Categories, c) }

func ValidMassif(m string) bool { return contains(Massifs, m) }

func ValidSunExposition(e string) bool { return contains(SunExpositions, e) }

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
