package entity

type AuctionItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"itemName"`
	Description string   `json:"itemDescription"`
	Images      []string `json:"images,omitempty"`
	Category    string   `json:"category,omitempty"`
	CurrentBid  float64  `json:"currentBid"`
	BiddingOpen bool     `json:"biddingOpen"`
}

type CannedResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}
