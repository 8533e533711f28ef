package wire

type CreateRoomRequest struct {
	Theme string `json:"theme"`
}

type CreateMessageRequest struct {
	Message string `json:"message"`
}

type IDResponse struct {
	ID string `json:"id"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}
