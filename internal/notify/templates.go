package notify

import (
	htmltemplate "html/template"
	texttemplate "text/template"
)

const qrAttachmentName = "ticket-qr.png"

var bookedHTML = htmltemplate.Must(htmltemplate.New("booked").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Your ticket for {{.Title}}</h2>
  <p>Hi {{.Name}}, your booking is confirmed.</p>
  <table cellpadding="4">
    <tr><td><strong>Date</strong></td><td>{{.Date}}</td></tr>
    <tr><td><strong>Time</strong></td><td>{{.Time}}</td></tr>
    <tr><td><strong>Location</strong></td><td>{{.Location}}</td></tr>
    <tr><td><strong>Price</strong></td><td>{{.Price}}</td></tr>
    <tr><td><strong>Ticket</strong></td><td>{{.TicketID}}</td></tr>
  </table>
  <p>Show this code at the entrance:</p>
  <img src="cid:{{.QRName}}" alt="Ticket QR code" width="256" height="256"/>
</body>
</html>`))

var bookedText = texttemplate.Must(texttemplate.New("booked").Parse(`Hi {{.Name}}, your booking is confirmed.

Event:    {{.Title}}
Date:     {{.Date}}
Time:     {{.Time}}
Location: {{.Location}}
Price:    {{.Price}}
Ticket:   {{.TicketID}}

Show the attached QR code at the entrance.
`))

var otpHTML = htmltemplate.Must(htmltemplate.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Password reset</h2>
  <p>Use this code to reset your password:</p>
  <p style="font-size: 28px; letter-spacing: 6px;"><strong>{{.Code}}</strong></p>
  <p>The code expires in {{.Minutes}} minutes. If you did not ask for it, ignore this email.</p>
</body>
</html>`))

var otpText = texttemplate.Must(texttemplate.New("otp").Parse(`Use this code to reset your password: {{.Code}}

The code expires in {{.Minutes}} minutes. If you did not ask for it, ignore this email.
`))

type bookedView struct {
	Name     string
	Title    string
	Date     string
	Time     string
	Location string
	Price    string
	TicketID string
	QRName   string
}

type otpView struct {
	Code    string
	Minutes int
}
