package mailerrepo

type Mail struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(m Mail) error
}
