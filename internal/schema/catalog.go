package schema

// Enumerated literals stored in text columns guarded by check constraints.
const (
	PersonActive   = "active"
	PersonInactive = "inactive"

	ProgramWorkshop = "taller"
	ProgramGroup    = "grupo"
	ProgramActivity = "actividad"

	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentOverdue = "overdue"

	MethodCash     = "efectivo"
	MethodTransfer = "transferencia"
	MethodCard     = "tarjeta"

	CalendarScheduled = "scheduled"
	CalendarCompleted = "completed"
	CalendarCancelled = "cancelled"

	RoleCoordinator   = "coordinator"
	RoleCoCoordinator = "co_coordinator"

	SignupEnrolled  = "inscripto"
	SignupCancelled = "cancelado"
	SignupAttended  = "asistio"
)

var (
	PersonStatuses   = []string{PersonActive, PersonInactive}
	ProgramTypes     = []string{ProgramWorkshop, ProgramGroup, ProgramActivity}
	PaymentStatuses  = []string{PaymentPending, PaymentPaid, PaymentOverdue}
	PaymentMethods   = []string{MethodCash, MethodTransfer, MethodCard}
	CalendarStatuses = []string{CalendarScheduled, CalendarCompleted, CalendarCancelled}
	Roles            = []string{RoleCoordinator, RoleCoCoordinator}
	SignupStatuses   = []string{SignupEnrolled, SignupCancelled, SignupAttended}
)

const (
	setNull  = "set null"
	cascade  = "cascade"
	restrict = "restrict"
)

func fk(name, column, refTable, onDelete string) ForeignKey {
	return ForeignKey{Name: name, Column: column, RefTable: refTable, RefColumn: "id", OnDelete: onDelete}
}

func uq(name string, cols ...string) Unique { return Unique{Name: name, Columns: cols} }

func idx(name, table string, cols ...string) Index {
	return Index{Name: name, Table: table, Columns: cols}
}

// Default returns the schema of the platform database. voluntarios and
// auth_users reference each other; auth_users is created pointing at
// voluntarios and the reverse reference is added by the one deferred step.
func Default() Catalog {
	return Build(defaultTables(), defaultDeferred(), defaultIndexes())
}

func defaultTables() []Table {
	return []Table{
		{
			Name: "voluntarios",
			Columns: columns([]Column{
				identity(),
				Col("name", "varchar(100)").NotNull(),
				Col("last_name", "varchar(100)"),
				Col("age", "integer"),
				Col("gender", "varchar(20)"),
				Col("photo", "text"),
				Col("phone", "varchar(50)"),
				Col("email", "varchar(150)"),
				Col("registration_date", "date").NotNull(),
				Col("birth_date", "date"),
				Col("status", "text").NotNull().Default("'active'").OneOf(PersonStatuses...),
				Col("specialties", "jsonb"),
				Col("is_admin", "boolean").NotNull().Default("false"),
				Col("pin_hash", "varchar(255)"),
			}, timestamps()),
		},
		{
			Name: "talleres",
			Columns: columns([]Column{
				identity(),
				Col("name", "varchar(200)").NotNull(),
				Col("description", "text"),
				Col("instructor", "varchar(100)"),
				Col("date", "date"),
				Col("schedule", "varchar(50)"),
				Col("capacity", "integer").NotNull().Default("0"),
				Col("cost", "integer").NotNull().Default("0"),
				Col("enrolled", "integer").NotNull().Default("0"),
				Col("status", "varchar(20)").NotNull().Default("'activo'"),
			}, timestamps()),
		},
		{
			Name: "grupos",
			Columns: columns([]Column{
				identity(),
				Col("name", "varchar(200)").NotNull(),
				Col("description", "text"),
				Col("coordinator", "varchar(100)"),
				Col("day", "varchar(20)"),
				Col("schedule", "varchar(50)"),
				Col("participants", "integer").NotNull().Default("0"),
				Col("status", "varchar(20)").NotNull().Default("'activo'"),
			}, timestamps()),
		},
		{
			Name: "actividades",
			Columns: columns([]Column{
				identity(),
				Col("name", "varchar(200)").NotNull(),
				Col("description", "text"),
				Col("status", "varchar(20)").NotNull().Default("'activo'"),
			}, timestamps()),
		},
		{
			Name: "pendientes",
			Columns: columns([]Column{
				Col("id", "varchar(36)").Key(),
				Col("description", "text").NotNull(),
				Col("assigned_volunteer_id", "varchar(20)"),
				Col("completed", "boolean").NotNull().Default("false"),
				Col("created_date", "timestamp").NotNull(),
				Col("completed_date", "timestamp"),
			}, timestamps()),
		},
		{
			Name: "auth_users",
			Columns: columns([]Column{
				identity(),
				Col("volunteer_id", "integer"),
				Col("email", "varchar(150)").NotNull(),
				Col("password_hash", "varchar(255)").NotNull(),
				Col("email_verified", "boolean").NotNull().Default("false"),
				Col("is_volunteer", "boolean").NotNull().Default("false"),
				Col("is_active", "boolean").NotNull().Default("true"),
				Col("last_login_at", "timestamp"),
				Col("last_login_ip", "varchar(45)"),
				Col("last_login_user_agent", "varchar(255)"),
			}, timestamps()),
			Uniques:     []Unique{uq("uq_auth_users_email", "email")},
			ForeignKeys: []ForeignKey{fk("fk_auth_users_volunteer", "volunteer_id", "voluntarios", setNull)},
		},
		{
			Name: "pagos",
			Columns: columns([]Column{
				identity(),
				Col("user_id", "integer").NotNull(),
				Col("concept", "varchar(200)").NotNull(),
				Col("amount", "integer").NotNull(),
				Col("due_date", "date").NotNull(),
				Col("payment_method", "text").OneOf(PaymentMethods...),
				Col("status", "text").NotNull().Default("'pending'").OneOf(PaymentStatuses...),
				Col("payment_date", "date"),
			}, timestamps()),
			ForeignKeys: []ForeignKey{fk("fk_pagos_user", "user_id", "voluntarios", cascade)},
		},
		{
			Name: "inventario",
			Columns: columns([]Column{
				identity(),
				Col("name", "varchar(200)").NotNull(),
				Col("category", "varchar(100)"),
				Col("quantity", "integer").NotNull().Default("0"),
				Col("minimum_stock", "integer").NotNull().Default("1"),
				Col("price", "numeric(10,2)").NotNull().Default("0.00"),
				Col("supplier", "varchar(200)"),
				Col("assigned_volunteer_id", "integer"),
				Col("entry_date", "date").NotNull(),
			}, timestamps()),
			ForeignKeys: []ForeignKey{fk("fk_inventario_volunteer", "assigned_volunteer_id", "voluntarios", setNull)},
		},
		{
			Name: "inscripciones",
			Columns: []Column{
				identity(),
				Col("user_id", "integer").NotNull(),
				Col("type", "text").NotNull().OneOf(ProgramTypes...),
				Col("item_id", "integer").NotNull(),
				Col("enrollment_date", "date").NotNull(),
				Col("status", "varchar(50)").NotNull().Default("'confirmada'"),
				createdAt(),
			},
			ForeignKeys: []ForeignKey{fk("fk_inscripciones_user", "user_id", "voluntarios", cascade)},
		},
		{
			Name: "pending_items",
			Columns: columns([]Column{
				Col("id", "varchar(36)").Key(),
				Col("pending_id", "varchar(36)").NotNull(),
				Col("description", "text").NotNull(),
				Col("assigned_volunteer_id", "varchar(20)"),
				Col("completed", "boolean").NotNull().Default("false"),
				Col("created_date", "timestamp").NotNull(),
				Col("completed_date", "timestamp"),
			}, timestamps()),
			ForeignKeys: []ForeignKey{fk("fk_pending_items_parent", "pending_id", "pendientes", cascade)},
		},
		{
			Name: "email_verification_tokens",
			Columns: []Column{
				identity(),
				Col("auth_user_id", "integer").NotNull(),
				Col("token_hash", "varchar(64)").NotNull(),
				Col("expires_at", "timestamp").NotNull(),
				Col("used_at", "timestamp"),
				createdAt(),
			},
			Uniques:     []Unique{uq("uq_evt_token_hash", "token_hash")},
			ForeignKeys: []ForeignKey{fk("fk_evt_auth_user", "auth_user_id", "auth_users", cascade)},
		},
		{
			Name: "auth_login_events",
			Columns: []Column{
				identity(),
				Col("auth_user_id", "integer"),
				Col("email", "varchar(150)").NotNull(),
				Col("success", "boolean").NotNull().Default("false"),
				Col("failure_reason", "varchar(100)"),
				Col("ip_address", "varchar(45)"),
				Col("user_agent", "varchar(255)"),
				createdAt(),
			},
			ForeignKeys: []ForeignKey{fk("fk_ale_auth_user", "auth_user_id", "auth_users", setNull)},
		},
		{
			Name: "auth_sessions",
			Columns: []Column{
				identity(),
				Col("auth_user_id", "integer").NotNull(),
				Col("session_token_hash", "varchar(64)").NotNull(),
				Col("expires_at", "timestamp").NotNull(),
				Col("revoked_at", "timestamp"),
				Col("ip_address", "varchar(45)"),
				Col("user_agent", "varchar(255)"),
				createdAt(),
			},
			Uniques:     []Unique{uq("uq_as_token_hash", "session_token_hash")},
			ForeignKeys: []ForeignKey{fk("fk_as_auth_user", "auth_user_id", "auth_users", cascade)},
		},
		{
			Name: "password_reset_tokens",
			Columns: []Column{
				identity(),
				Col("auth_user_id", "integer").NotNull(),
				Col("token_hash", "varchar(64)").NotNull(),
				Col("expires_at", "timestamp").NotNull(),
				Col("used_at", "timestamp"),
				createdAt(),
			},
			Uniques:     []Unique{uq("uq_prt_token_hash", "token_hash")},
			ForeignKeys: []ForeignKey{fk("fk_prt_auth_user", "auth_user_id", "auth_users", cascade)},
		},
		{
			Name: "calendar_instances",
			Columns: columns([]Column{
				identity(),
				Col("type", "text").NotNull().OneOf(ProgramTypes...),
				Col("source_id", "integer"),
				Col("date", "date").NotNull(),
				Col("start_time", "time").NotNull().Default("'10:00:00'"),
				Col("end_time", "time").NotNull().Default("'12:00:00'"),
				Col("notes", "text"),
				Col("status", "text").NotNull().Default("'scheduled'").OneOf(CalendarStatuses...),
			}, timestamps()),
		},
		{
			Name: "calendar_assignments",
			Columns: columns([]Column{
				identity(),
				Col("instance_id", "integer").NotNull(),
				Col("volunteer_id", "integer").NotNull(),
				Col("role", "text").NotNull().OneOf(Roles...),
			}, timestamps()),
			Uniques: []Unique{uq("uq_ca_instance_role", "instance_id", "role")},
			ForeignKeys: []ForeignKey{
				fk("fk_ca_instance", "instance_id", "calendar_instances", cascade),
				fk("fk_ca_volunteer", "volunteer_id", "voluntarios", restrict),
			},
		},
		{
			Name: "participants",
			Columns: columns([]Column{
				identity(),
				Col("email", "varchar(150)").NotNull(),
				Col("pin_hash", "varchar(255)"),
				Col("is_active", "boolean").NotNull().Default("true"),
			}, timestamps()),
			Uniques: []Unique{uq("uq_participants_email", "email")},
		},
		{
			Name: "participant_profiles",
			Columns: columns([]Column{
				identity(),
				Col("participant_id", "integer").NotNull(),
				Col("name", "varchar(100)"),
				Col("last_name", "varchar(100)"),
				Col("phone", "varchar(50)"),
				Col("birth_date", "date"),
				Col("city", "varchar(100)"),
				Col("province", "varchar(100)"),
				Col("address", "varchar(200)"),
				Col("emergency_contact_name", "varchar(100)"),
				Col("emergency_contact_phone", "varchar(50)"),
				Col("notes", "text"),
				Col("accepts_notifications", "boolean").NotNull().Default("false"),
				Col("accepts_whatsapp", "boolean").NotNull().Default("false"),
			}, timestamps()),
			Uniques:     []Unique{uq("uq_pp_participant", "participant_id")},
			ForeignKeys: []ForeignKey{fk("fk_pp_participant", "participant_id", "participants", cascade)},
		},
		{
			Name: "calendar_event_participants",
			Columns: columns([]Column{
				identity(),
				Col("event_id", "integer").NotNull(),
				Col("participant_id", "integer").NotNull(),
				Col("status", "text").NotNull().Default("'inscripto'").OneOf(SignupStatuses...),
			}, timestamps()),
			Uniques: []Unique{uq("uq_cep", "event_id", "participant_id")},
			ForeignKeys: []ForeignKey{
				fk("fk_cep_event", "event_id", "calendar_instances", cascade),
				fk("fk_cep_participant", "participant_id", "participants", cascade),
			},
		},
		{
			Name: "participant_program_enrollments",
			Columns: []Column{
				identity(),
				Col("participant_id", "integer").NotNull(),
				Col("type", "text").NotNull().OneOf(ProgramTypes...),
				Col("item_id", "integer").NotNull(),
				Col("enrolled_at", "timestamptz").Default("now()"),
			},
			Uniques:     []Unique{uq("uq_ppe_enrollment", "participant_id", "type", "item_id")},
			ForeignKeys: []ForeignKey{fk("fk_ppe_participant", "participant_id", "participants", cascade)},
		},
	}
}

func defaultDeferred() Alteration {
	return Alteration{
		Table:       "voluntarios",
		Columns:     []Column{Col("auth_user_id", "integer")},
		Uniques:     []Unique{uq("uq_voluntarios_auth_user", "auth_user_id")},
		ForeignKeys: []ForeignKey{fk("fk_voluntarios_auth_user", "auth_user_id", "auth_users", setNull)},
	}
}

func defaultIndexes() []Index {
	return []Index{
		idx("idx_pagos_user", "pagos", "user_id"),
		idx("idx_pagos_status", "pagos", "status"),
		idx("idx_inscripciones_user", "inscripciones", "user_id"),
		idx("idx_inscripciones_type", "inscripciones", "type", "item_id"),
		idx("idx_inventario_volunteer", "inventario", "assigned_volunteer_id"),
		idx("idx_voluntarios_email", "voluntarios", "email"),
		idx("idx_pending_items_parent", "pending_items", "pending_id"),
		idx("idx_auth_users_email_ver", "auth_users", "email_verified"),
		idx("idx_auth_users_vol_id", "auth_users", "volunteer_id"),
		idx("idx_auth_users_is_active", "auth_users", "is_active"),
		idx("idx_evt_auth_user_id", "email_verification_tokens", "auth_user_id"),
		idx("idx_evt_expires_at", "email_verification_tokens", "expires_at"),
		idx("idx_ale_auth_user_id", "auth_login_events", "auth_user_id"),
		idx("idx_ale_email", "auth_login_events", "email"),
		idx("idx_ale_success", "auth_login_events", "success"),
		idx("idx_as_auth_user_id", "auth_sessions", "auth_user_id"),
		idx("idx_as_expires_at", "auth_sessions", "expires_at"),
		idx("idx_voluntarios_auth_user", "voluntarios", "auth_user_id"),
		idx("idx_ci_date", "calendar_instances", "date"),
		idx("idx_ci_type", "calendar_instances", "type"),
		idx("idx_ca_inst", "calendar_assignments", "instance_id"),
		idx("idx_ca_vol", "calendar_assignments", "volunteer_id"),
		idx("idx_participants_email", "participants", "email"),
		idx("idx_pp_participant_id", "participant_profiles", "participant_id"),
		idx("idx_cep_event_id", "calendar_event_participants", "event_id"),
		idx("idx_cep_participant_id", "calendar_event_participants", "participant_id"),
		idx("idx_ppe_participant_id", "participant_program_enrollments", "participant_id"),
	}
}
