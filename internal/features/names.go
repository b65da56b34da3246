package features

// FeatureNames is the frozen, ordered column list of the numeric feature table.
// Position i of every feature vector holds FeatureNames[i]. The list must match the
// one the transform artifacts were fit on.
var FeatureNames = []string{
	"IdUnico",
	"Fecha_Ingreso",
	"Nombre_Estado",
	"Nombre_Tipo_Vinculacion",
	"Estado_Civil",
	"Personas_a_Cargo",
	"Personas_a_Cargo_Menores_18",
	"Sexo",
	"Estrato",
	"Nombre_Tipo_Vivienda",
	"Nombre_Nivel_Academico",
	"Fecha_Nacimiento",
	"Ingresos",
	"Nombre_Titulo_Obtenido",
	"Nombre_Ocupacion",
	"Saldo_aportes",
	"Cuotas_canceladas_aportes",
	"Cuotas_mora_aportes",
	"Vlr_mora",
	"Ingresos_Deflactados",
	"Zona",
	"Cta_Dep",
	"Cta_Juve",
	"Fondo_Soc",
	"Cheque_Cta",
	"Cupo_Activ",
	"Tarj_Debit",
	"Cdat",
	"PAP",
	"Creditos",
	"Cred_Vivienda",
	"Cred_Lib_Inv_con_Garant",
	"Cred_Lib_Inv_sin_Garant",
	"Cred_Vehic",
	"Cred_Creac_Empr",
	"Cred_Educac",
	"Cred_Otros",
	"Pila",
	"bancaseguro",
	"AFC",
	"TieneVISA",
	"saldo_VISA",
	"CuotaManejo",
	"Microcreditos",
	"Credisolidario",
	"Solidaridad",
	"Exequial",
	"Herencia",
	"Hospitalizacion",
	"Recuperacion",
	"Solvencia",
	"Tranquilidad",
	"Vida",
	"VidaClasica",
	"Seguros2",
	"SeguroAuto",
	"SeguroSinAuto",
	"HogarMasyTotalHome",
	"Soat",
	"TotalRCMedica",
	"OtrasPolizas",
	"MI",
	"CEM",
	"SAOR",
	"MPT",
	"numedad",
	"PlanEducativo",
	"MasterCardCupo",
	"MasterCardSaldo",
	"Tarjetas",
	"Credimutual",
	"SolidaridadPBI",
	"Libranza",
	"ReestructuracionConsumo",
	"COERotativo",
	"Originadores",
	"COE",
	"CupoEducar",
	"CreditoTurismo",
	"CreditoSaludBienestar",
	"ReestructuracionComercial",
	"ReestructuracionVivienda",
	"CreditoCapitaldeTrabajo",
	"Findeter",
	"Bancoldex",
	"Sobregiro",
	"CreditoCalamidad",
	"CreditoProductivo",
	"FindeterRotativo",
	"NominaFacil",
	"PagodeObligaciones",
	"Desempleo",
	"FondoSocialViviendaPatrimonial",
	"FondoSocialViviendaVida",
	"numCantidadProductos",
	"FondoSocialViviendaBanco",
	"PrimaNivelada",
	"Crediasociado",
	"CuentaPension",
	"FIC_365",
	"FIC_90",
	"FIC_Vista",
	"Inversiones_No_Tradicionales",
	"Renta_Fija_Corto_Plazo",
	"log_ingresos",
	"log_ingresos_deflactados",
	"Antiguedad_dias",
	"Edad",
	"Area_Titulo",
	"Region",
	"Nombre_Estado_Activo Normal",
	"Nombre_Estado_Inactivo",
	"Nombre_Estado_Receso",
	"Nombre_Estado_Suspendido Cobranza Interna",
	"Nombre_Estado_Suspendido Fallecido",
	"Nombre_Estado_Suspendido Normal",
	"Nombre_Tipo_Vinculacion_Empleado No Profesional",
	"Nombre_Tipo_Vinculacion_Empresa Persona Natural",
	"Nombre_Tipo_Vinculacion_Estudiante",
	"Nombre_Tipo_Vinculacion_Familiar Asociado",
	"Nombre_Tipo_Vinculacion_Familiar Asociado Fallecido",
	"Nombre_Tipo_Vinculacion_Mayor 60",
	"Nombre_Tipo_Vinculacion_Personas Jurídicas",
	"Nombre_Tipo_Vinculacion_Profesional",
	"Nombre_Tipo_Vinculacion_Recién Graduado",
	"Nombre_Tipo_Vinculacion_Transición",
	"Nombre_Tipo_Vinculacion_Técnicos y Tecnólogos",
	"Estado_Civil_Divorciado",
	"Estado_Civil_No Cruza",
	"Estado_Civil_No Definido",
	"Estado_Civil_Separado",
	"Estado_Civil_Soltero",
	"Estado_Civil_Union Libre",
	"Estado_Civil_Viudo",
	"Sexo_J",
	"Sexo_M",
	"Estrato_2",
	"Estrato_3",
	"Estrato_4",
	"Estrato_5",
	"Estrato_6",
	"Estrato_9",
	"Estrato_No Cruza",
	"Nombre_Tipo_Vivienda_Desconocida",
	"Nombre_Tipo_Vivienda_Familiar",
	"Nombre_Tipo_Vivienda_No Cruza",
	"Nombre_Tipo_Vivienda_Propia",
	"Nombre_Nivel_Academico_Ninguno",
	"Nombre_Nivel_Academico_No Cruza",
	"Nombre_Nivel_Academico_Otros",
	"Nombre_Nivel_Academico_Profesional",
	"Nombre_Nivel_Academico_Tecnólogo",
	"Nombre_Nivel_Academico_Técnico",
	"Nombre_Ocupacion_Asalariado",
	"Nombre_Ocupacion_Estudiante",
	"Nombre_Ocupacion_Independiente",
	"Nombre_Ocupacion_Ninguno / No definido",
	"Nombre_Ocupacion_No Cruza",
	"Nombre_Ocupacion_Otro tipo de Actividad",
	"Nombre_Ocupacion_Pensionado - Jubilado",
	"Nombre_Ocupacion_Rentista Capital",
	"Nombre_Ocupacion_Socio Sociedad",
	"Andina",
	"Caribe",
	"Orinoquía",
	"Otro",
	"Pacífica",
	"Arquitectura",
	"Ciencias Sociales",
	"Comunicaciones",
	"Educación",
	"Ingeniería",
	"Otro.1",
	"Salud",
	"Tecnología",
}

// RequiredFields must be non-null for a row to be kept.
var RequiredFields = []string{
	"Saldo_aportes",
	"Cuotas_canceladas_aportes",
	"Cuotas_mora_aportes",
	"Vlr_mora",
	"Ingresos",
}

// CategoricalColumns are one-hot expanded as <column>_<value>.
var CategoricalColumns = []string{
	"Nombre_Estado",
	"Nombre_Tipo_Vinculacion",
	"Estado_Civil",
	"Sexo",
	"Estrato",
	"Nombre_Tipo_Vivienda",
	"Nombre_Nivel_Academico",
	"Nombre_Ocupacion",
}

// redundantColumns have a Nombre_* display variant that is kept instead, plus raw
// columns the model never saw.
var redundantColumns = []string{
	"Estado",
	"Tipo_Vinculacion",
	"Tipo_Vivienda",
	"Nivel_Academico",
	"Ocupacion",
	"Motivo_Retiro",
	"Segmento_Consumo",
	"Segmento_Rotativo",
	"Segmento_Ciclo_de_Vida",
	"Segmento_Ingresos_vs_Antiguedad",
	"Descripcion_Oficina",
	"Regional",
	"Fecha_Ingresos",
	"Fecha_Ingresos_Deflactados",
	"indInactivo",
	"Ptaje_acierta",
	"Egresos",
}

// unusedProductColumns are product flags dropped after the log-income step.
// Their frozen positions are zero-filled.
var unusedProductColumns = []string{
	"Personas_a_Cargo_Menores_18", "PAP", "Pila", "bancaseguro", "AFC",
	"TieneVISA", "Credisolidario", "Exequial", "Herencia", "Hospitalizacion",
	"Recuperacion", "Tranquilidad", "Vida", "VidaClasica", "HogarMasyTotalHome",
	"MI", "CEM", "SAOR", "MPT", "PlanEducativo",
	"Credimutual", "SolidaridadPBI", "Libranza", "ReestructuracionConsumo", "COERotativo",
	"Originadores", "COE", "CupoEducar", "CreditoTurismo", "CreditoSaludBienestar",
	"ReestructuracionComercial", "ReestructuracionVivienda", "Findeter", "Bancoldex", "Sobregiro",
	"FindeterRotativo", "NominaFacil", "Desempleo", "FondoSocialViviendaPatrimonial", "FondoSocialViviendaBanco",
	"PrimaNivelada", "FIC_365", "FIC_90", "FIC_Vista", "Inversiones_No_Tradicionales",
	"Renta_Fija_Corto_Plazo", "CuentaPension", "FondoSocialViviendaVida", "PagodeObligaciones", "CreditoProductivo",
	"CreditoCalamidad", "CreditoCapitaldeTrabajo", "Microcreditos", "CuotaManejo", "Cred_Otros",
	"Cred_Creac_Empr", "Cred_Lib_Inv_con_Garant",
}

// Derived column names.
const (
	colIngresos         = "Ingresos"
	colIngresosDefl     = "Ingresos_Deflactados"
	colLogIngresos      = "log_ingresos"
	colLogIngresosDefl  = "log_ingresos_deflactados"
	colFechaIngreso     = "Fecha_Ingreso"
	colFechaNacimiento  = "Fecha_Nacimiento"
	colAntiguedadDias   = "Antiguedad_dias"
	colEdad             = "Edad"
	colTitulo           = "Nombre_Titulo_Obtenido"
	colZona             = "Zona"
	colIDUnico          = "IdUnico"
	colAreaTitulo       = "Area_Titulo"
	colRegion           = "Region"
	titleOtherIndicator = "Otro.1"
)

func toSet(names ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, list := range names {
		for _, n := range list {
			set[n] = struct{}{}
		}
	}
	return set
}
