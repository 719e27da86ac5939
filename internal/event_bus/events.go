package event_bus

const (
	AppointmentBookedType      EventType = "appointment.booked"
	AppointmentRescheduledType EventType = "appointment.rescheduled"
	AppointmentCancelledType   EventType = "appointment.cancelled"
)

type AppointmentBooked struct {
	FullName string `json:"full_name"`
	Email    string `json:"contact_email"`
	Phone    string `json:"phone_number"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

type AppointmentRescheduled struct {
	Email        string `json:"contact_email"`
	PreviousDate string `json:"previous_date"`
	PreviousTime string `json:"previous_time"`
	Date         string `json:"date"`
	Time         string `json:"time"`
}

type AppointmentCancelled struct {
	Email string `json:"contact_email"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}
