package db

type QueueRecord struct {
	Name      string
	Vhost     string // set once on creation, never updated
	Owner     *User  // nil until the queue is attributed to a user
	CreatedAt int64
	UpdatedAt int64
}

func (qr *QueueRecord) HasOwner() bool {
	return qr.Owner != nil
}

type NewQueue struct {
	Name      string
	Vhost     string
	CreatedAt int64
}

type User struct {
	Username  string
	Email     string
	CreatedAt int64
}

type NewUser struct {
	Username  string
	Email     string
	CreatedAt int64
}
