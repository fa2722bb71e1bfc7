package seed

// SampleListing は初期データの物件。ImageURLは取り込み元の外部画像。
type SampleListing struct {
	Title       string
	Description string
	ImageURL    string
	Price       float64
	Location    string
	Country     string
}

const (
	imgVilla     = "https://images.unsplash.com/photo-1613490493576-7fde63acd811?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxzZWFyY2h8Mnx8YmVhY2hmcm9udCUyMHZpbGxhfGVufDB8fDB8fHww&auto=format&fit=crop&w=800&q=60"
	imgApartment = "https://images.unsplash.com/photo-1522708323590-d24dbb6b0267?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxzZWFyY2h8NHx8YXBhcnRtZW50fGVufDB8fDB8fHww&auto=format&fit=crop&w=800&q=60"
	imgCabin     = "https://images.unsplash.com/photo-1512917774080-9991f1c4c750?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxzZWFyY2h8M3x8Y2FiaW58ZW58MHx8MHx8fHww&auto=format&fit=crop&w=800&q=60"
	imgTownhouse = "https://images.unsplash.com/photo-1600585154340-be6161a56a0c?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxzZWFyY2h8OHx8aG91c2V8ZW58MHx8MHx8fHww&auto=format&fit=crop&w=800&q=60"
	imgCottage   = "https://images.unsplash.com/photo-1568605114967-8130f3a36994?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxzZWFyY2h8MTB8fGhvdXNlfGVufDB8fDB8fHww&auto=format&fit=crop&w=800&q=60"
	imgDesert    = "https://images.unsplash.com/photo-1600585152220-90363fe7e115?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxzZWFyY2h8MTJ8fGhvdXNlfGVufDB8fDB8fHww&auto=format&fit=crop&w=800&q=60"
)

// SampleListings は空のデータベースに投入する物件。
var SampleListings = []SampleListing{
	{
		Title:       "Luxury Beachfront Villa",
		Description: "Stunning beachfront villa with panoramic ocean views, private pool, and direct beach access. Perfect for family vacations or group getaways.",
		ImageURL:    imgVilla,
		Price:       500,
		Location:    "Maldives",
		Country:     "Maldives",
	},
	{
		Title:       "Modern City Apartment",
		Description: "Contemporary apartment in the heart of the city with stunning skyline views. Close to major attractions and public transportation.",
		ImageURL:    imgApartment,
		Price:       200,
		Location:    "New York",
		Country:     "USA",
	},
	{
		Title:       "Mountain Cabin Retreat",
		Description: "Cozy log cabin nestled in the mountains with breathtaking views. Perfect for nature lovers and outdoor enthusiasts.",
		ImageURL:    imgCabin,
		Price:       150,
		Location:    "Swiss Alps",
		Country:     "Switzerland",
	},
	{
		Title:       "Historic Townhouse",
		Description: "Beautifully restored historic townhouse with modern amenities. Located in the cultural district with easy access to museums and galleries.",
		ImageURL:    imgTownhouse,
		Price:       300,
		Location:    "Paris",
		Country:     "France",
	},
	{
		Title:       "Lakeside Cottage",
		Description: "Charming cottage on the lake with private dock and stunning sunset views. Perfect for fishing and water activities.",
		ImageURL:    imgCottage,
		Price:       180,
		Location:    "Lake Como",
		Country:     "Italy",
	},
	{
		Title:       "Desert Oasis Villa",
		Description: "Luxurious villa in the desert with private pool and stunning mountain views. Experience the magic of the desert landscape.",
		ImageURL:    imgDesert,
		Price:       400,
		Location:    "Dubai",
		Country:     "UAE",
	},
	{
		Title:       "Treehouse Escape",
		Description: "Unique treehouse experience in the heart of the rainforest. Wake up to the sounds of nature and stunning forest views.",
		ImageURL:    imgTownhouse,
		Price:       120,
		Location:    "Costa Rica",
		Country:     "Costa Rica",
	},
	{
		Title:       "Ski Chalet",
		Description: "Traditional alpine chalet with direct access to ski slopes. Perfect for winter sports enthusiasts and family vacations.",
		ImageURL:    imgCabin,
		Price:       350,
		Location:    "Whistler",
		Country:     "Canada",
	},
	{
		Title:       "Beach Bungalow",
		Description: "Traditional beach bungalow with direct access to white sand beaches. Experience the authentic island lifestyle.",
		ImageURL:    imgVilla,
		Price:       100,
		Location:    "Bali",
		Country:     "Indonesia",
	},
	{
		Title:       "Luxury Penthouse",
		Description: "Ultra-modern penthouse with panoramic city views and high-end amenities. Perfect for business travelers and luxury seekers.",
		ImageURL:    imgApartment,
		Price:       600,
		Location:    "Singapore",
		Country:     "Singapore",
	},
}
