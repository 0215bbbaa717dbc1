package domain

type Hotel struct {
	ID         int64  `json:"id"`
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	StaffEmail string `json:"staff_email,omitempty"`
}

type Room struct {
	ID         int64  `json:"id"`
	HotelID    int64  `json:"hotel_id"`
	RoomNumber string `json:"room_number"`
}

type Service struct {
	ID         int64  `json:"id"`
	HotelID    int64  `json:"hotel_id"`
	CategoryID *int64 `json:"category_id,omitempty"`
	Slug       string `json:"slug"`
	Name       string `json:"name"`
}
