package stripex

// Metadata keys written on payment objects and read back by the webhook reconciler.
const (
	MetaBookingID       = "bookingId"
	MetaBarberID        = "barberId"
	MetaClientID        = "clientId"
	MetaServiceID       = "serviceId"
	MetaAppointmentDate = "appointmentDate"
	MetaAppointmentTime = "appointmentTime"
	MetaTotalAmount     = "totalAmount"
	MetaClientName      = "clientName"
	MetaClientPhone     = "clientPhone"
	MetaClientEmail     = "clientEmail"
	MetaNotes           = "notes"
)
