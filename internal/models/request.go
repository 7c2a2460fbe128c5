package models

// ConsultaRequest is the body accepted by the identity based endpoints.
type ConsultaRequest struct {
	Cedula string `json:"cedula" binding:"required"`
}

// RUCRequest is the body accepted by the RUC based endpoints.
type RUCRequest struct {
	RUC string `json:"ruc" binding:"required"`
}

// NameRequest is the body accepted by the name based endpoints.
type NameRequest struct {
	Nombre   string `json:"nombre" binding:"required"`
	Apellido string `json:"apellido" binding:"required"`
}

// ErrorLogEntry is one row of the persistent error log.
type ErrorLogEntry struct {
	ID        int64  `json:"id"`
	Service   string `json:"servicio"`
	Identity  string `json:"cedula"`
	Kind      string `json:"tipo_error"`
	Detail    string `json:"detalle"`
	CreatedAt string `json:"fecha"`
}
