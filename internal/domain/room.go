package domain

type (
	RoomName string
	Lang     string
)
