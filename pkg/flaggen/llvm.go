// Copyright 2024 rvfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package flaggen

var (
	LlvmBasic = newCatalog("llvm-basic", nil, llvmBasicOptions)
	LlvmAll   = newCatalog("llvm-all", llvmAllRules, llvmAllOptions, []Option{ghost("static_opt")})
)

func init() {
	LlvmBasic.ltoUsesLld = true
	LlvmAll.ltoUsesLld = true
}

var llvmBasicOptions = []Option{
	toggle("flto"),
	ghost("static_opt"),
	enum("mrvv_vector_bits", "scalable", "zvl"),
}

// Each rule is named after the clang diagnostic (or LLVM issue) it avoids.
var llvmAllRules = []rule{
	{
		// invalid argument '-fprofile-generate' not allowed with '-fprofile-instr-generate'
		when: on("fprofile_instr_generate"),
		then: hide("fprofile_generate"),
	},
	{
		// invalid argument '-fcs-profile-generate' not allowed with '-fprofile-generate'
		when: on("fprofile_generate"),
		then: hide("fcs_profile_generate"),
	},
	{
		// invalid argument '-fcoverage-mapping' only allowed with '-fprofile-instr-generate'
		when: not(on("fprofile_instr_generate")),
		then: hide("fcoverage_mapping"),
	},
	{
		// the combination of '-fno-offload-lto' and '-fopenmp-target-jit' is incompatible
		when: off("foffload_lto"),
		then: hide("fopenmp_target_jit"),
	},
	{
		// invalid argument '-gembed-source' only allowed with '-gdwarf-5'
		when: not(on("gdwarf_5")),
		then: hide("gembed_source"),
	},
	{
		// invalid argument '-fno-minimize-whitespace' only allowed with '-E'
		// invalid argument '-fkeep-system-includes' only allowed with '-E'
		when: not(on("E")),
		then: hide("fminimize_whitespace", "fkeep_system_includes"),
	},
	{
		// invalid argument '-fcoverage-mcdc' only allowed with '-fcoverage-mapping'
		when: not(on("fcoverage_mapping")),
		then: hide("fcoverage_mcdc"),
	},
	{
		// invalid argument '-gdwarf64' only allowed with 'DWARFv3 or greater'
		when: not(anyOf(on("gdwarf_3"), on("gdwarf_4"), on("gdwarf_5"))),
		then: hide("gdwarf64"),
	},
	{
		when: anyOf(on("faddrsig"), on("gembed_source"), on("fpseudo_probe_for_profiling")),
		then: hide("fintegrated_as"),
	},
	{
		when: anyOf(on("ffreestanding"), off("fbuiltin")),
		then: hide("femit_all_decls"),
	},
	{
		when: on("fms_volatile"),
		then: hide("fms_volatile"),
	},
	{
		when: allOf(on("fcs_profile_generate"), on("ffat_lto_objects"), on("flto")),
		then: hide("fcs_profile_generate"),
	},
	{
		// lld does not support split stacks.
		when: on("flto"),
		then: hide("fsplit_stack"),
	},
	{
		when: not(on("flto")),
		then: hide("fwhole_program_vtables"),
	},
	{
		// <flag> is not supported with -fembed-bitcode
		when: on("fembed_bitcode"),
		then: hide(
			"fdata_sections",
			"fdebug_types_section",
			"ffixed_x18",
			"funique_basic_block_section_names",
			"funique_section_names",
			"mglobal_merge",
			"mrelax_all",
			"mstackrealign",
			"ffunction_sections",
			"funique_internal_linkage_names",
		),
	},
	{
		// https://github.com/llvm/llvm-project/issues/88038
		when: allOf(on("fcoverage_mapping"), on("fcs_profile_generate"), on("fprofile_instr_generate")),
		then: hide("fcs_profile_generate"),
	},
	{
		// https://github.com/llvm/llvm-project/issues/88041
		when: allOf(anyOf(on("fembed_bitcode"), on("fembed_bitcode_marker")), on("ffat_lto_objects"), on("flto")),
		then: hide("ffat_lto_objects"),
	},
	{
		when: allOf(on("fembed_bitcode"), on("fsave_optimization_record"), off("fintegrated_as")),
		then: hide("fintegrated_as"),
	},
	{
		when: allOf(on("fembed_bitcode"), anyOf(on("gdwarf_2"), on("gdwarf_3"), on("gdwarf_4")),
			off("fintegrated_as")),
		then: hide("fintegrated_as"),
	},
	{
		// https://github.com/llvm/llvm-project/issues/88046
		when: allOf(on("fglobal_isel"), on("fstack_protector_all")),
		then: hide("fstack_protector_all"),
	},
	{
		// https://github.com/llvm/llvm-project/issues/88057
		when: allOf(on("fglobal_isel"), on("finstrument_functions"), on("flto")),
		then: hide("finstrument_functions"),
	},
	{
		// https://github.com/llvm/llvm-project/issues/88079
		when: anyOf(on("fstack_protector_all"), on("fstack_protector_strong"), on("fstack_protector")),
		then: hide("fdirect_access_external_data"),
	},
	{
		// https://github.com/llvm/llvm-project/issues/88153
		when: allOf(on("gline_directives_only"), on("fdebug_macro")),
		then: setToggle("fdebug_macro", ToggleOff),
	},
	{
		// https://github.com/llvm/llvm-project/issues/88208
		when: on("mms_bitfields"),
		then: setToggle("mms_bitfields", ToggleOff),
	},
	{
		// GlobalISel is not usable on RISC-V.
		when: always,
		then: hide("fglobal_isel"),
	},
}

var llvmAllOptions = []Option{
	toggle("faapcs_bitfield_width"),
	toggle("faccess_control"),
	toggle("faddrsig"),
	toggle("faligned_allocation"),
	toggle("fallow_editor_placeholders"),
	ghost("fansi_escape_codes"),
	toggle("fapinotes"),
	toggle("fapinotes_modules"),
	ghost("fapple_link_rtlib"),
	toggle("fapple_pragma_pack"),
	toggle("fapplication_extension"),
	toggle("fapprox_func"),
	toggle("fassume_nothrow_exception_dtor"),
	toggle("fassume_sane_operator_new"),
	toggle("fassume_unique_vtables"),
	toggle("fassumptions"),
	toggle("fasync_exceptions"),
	toggle("fautolink"),
	toggle("fblocks"),
	toggle("fborland_extensions"),
	toggle("fbuiltin"),
	toggle("fbuiltin_module_map"),
	toggle("fchar8_t"),
	toggle("fcheck_new"),
	toggle("fcolor_diagnostics"),
	toggle("fcommon"),
	toggle("fcomplete_member_pointers"),
	toggle("fconstant_cfstrings"),
	toggle("fconvergent_functions"),
	toggle("fcoro_aligned_allocation"),
	toggle("fcoroutines"),
	toggle("fcoverage_mapping"),
	toggle("fcoverage_mcdc"),
	toggle("fcrash_diagnostics"),
	ghost("fcs_profile_generate"),
	toggle("fcuda_short_ptr"),
	toggle("fcx_fortran_rules"),
	toggle("fcx_limited_range"),
	toggle("fcxx_exceptions"),
	toggle("fcxx_modules"),
	toggle("fdata_sections"),
	toggle("fdebug_info_for_profiling"),
	toggle("fdebug_macro"),
	toggle("fdebug_ranges_base_address"),
	toggle("fdebug_types_section"),
	toggle("fdeclspec"),
	toggle("fdefine_target_os_macros"),
	toggle("fdelayed_template_parsing"),
	toggle("fdelete_null_pointer_checks"),
	ghost("fdiagnostics_absolute_paths"),
	toggle("fdiagnostics_fixit_info"),
	ghost("fdiagnostics_parseable_fixits"),
	ghost("fdiagnostics_print_source_range_info"),
	toggle("fdiagnostics_show_hotness"),
	toggle("fdiagnostics_show_line_numbers"),
	toggle("fdiagnostics_show_note_include_stack"),
	toggle("fdiagnostics_show_option"),
	ghost("fdiagnostics_show_template_tree"),
	toggle("fdirect_access_external_data"),
	toggle("fdiscard_value_names"),
	toggle("fdollars_in_identifiers"),
	ghost("fdriver_only"),
	ghost("fdwarf_exceptions"),
	toggle("felide_constructors"),
	ghost("fno_elide_type"),
	toggle("feliminate_unused_debug_types"),
	ghost("fembed_bitcode"),
	ghost("fembed_bitcode_marker"),
	ghost("femit_all_decls"),
	toggle("femit_compact_unwind_non_canonical"),
	toggle("femulated_tls"),
	ghost("fenable_matrix"),
	toggle("fexceptions"),
	toggle("fexperimental_library"),
	ghost("fexperimental_strict_floating_point"),
	toggle("ffast_math"),
	toggle("ffat_lto_objects"),
	toggle("ffile_reproducible"),
	toggle("ffine_grained_bitfield_accesses"),
	toggle("ffinite_loops"),
	toggle("ffinite_math_only"),
	toggle("ffixed_point"),
	ghost("ffixed_x18"),
	ghost("ffixed_x19"),
	ghost("ffixed_x20"),
	ghost("ffixed_x21"),
	ghost("ffixed_x22"),
	ghost("ffixed_x23"),
	ghost("ffixed_x24"),
	ghost("ffixed_x25"),
	ghost("ffixed_x26"),
	ghost("ffixed_x27"),
	ghost("ffixed_x28"),
	ghost("ffixed_x29"),
	ghost("ffixed_x3"),
	ghost("ffixed_x30"),
	ghost("ffixed_x31"),
	ghost("ffixed_x4"),
	ghost("ffixed_x5"),
	ghost("ffixed_x6"),
	ghost("ffixed_x7"),
	ghost("ffixed_x9"),
	ghost("fforce_check_cxx20_modules_input_files"),
	toggle("fforce_dwarf_frame"),
	toggle("fforce_emit_vtables"),
	toggle("fforce_enable_int128"),
	ghost("ffreestanding"),
	toggle("ffunction_sections"),
	toggle("fglobal_isel"),
	toggle("fgnu_inline_asm"),
	toggle("fgnu_keywords"),
	ghost("fgnu_runtime"),
	toggle("fgnu89_inline"),
	toggle("fgpu_allow_device_init"),
	toggle("fgpu_approx_transcendentals"),
	toggle("fgpu_defer_diag"),
	toggle("fgpu_exclude_wrong_side_overloads"),
	toggle("fgpu_flush_denormals_to_zero"),
	toggle("fgpu_rdc"),
	toggle("fgpu_sanitize"),
	toggle("fhip_fp32_correctly_rounded_divide_sqrt"),
	toggle("fhip_kernel_arg_name"),
	toggle("fhip_new_launch_api"),
	toggle("fhonor_infinities"),
	toggle("fhonor_nans"),
	ghost("fignore_exceptions"),
	toggle("fimplicit_module_maps"),
	ghost("fincremental_extensions"),
	toggle("finline_functions"),
	ghost("finline_hint_functions"),
	ghost("finstrument_functions"),
	ghost("finstrument_functions_after_inlining"),
	toggle("fintegrated_as"),
	toggle("fintegrated_cc1"),
	ghost("fintegrated_objemitter"),
	toggle("fjmc"),
	toggle("fjump_tables"),
	toggle("fkeep_persistent_storage_variables"),
	toggle("fkeep_static_consts"),
	toggle("fkeep_system_includes"),
	ghost("fno_knr_functions"),
	toggle("flto"),
	toggle("fmath_errno"),
	toggle("fmerge_all_constants"),
	toggle("fminimize_whitespace"),
	ghost("fmodule_header"),
	ghost("fmodule_output"),
	toggle("fmodules"),
	toggle("fmodules_decluse"),
	ghost("fmodules_disable_diagnostic_validation"),
	toggle("fmodules_search_all"),
	ghost("fno_modules_validate_input_files_content"),
	toggle("fmodules_validate_system_headers"),
	ghost("fno_modules_validate_textual_header_includes"),
	toggle("fms_compatibility"),
	toggle("fms_extensions"),
	ghost("fms_hotpatch"),
	toggle("fms_volatile"),
	toggle("fnew_infallible"),
	toggle("fobjc_arc"),
	toggle("fobjc_arc_exceptions"),
	toggle("fobjc_avoid_heapify_local_blocks"),
	ghost("fobjc_disable_direct_methods_for_testing"),
	toggle("fobjc_encode_cxx_class_template_spec"),
	toggle("fobjc_exceptions"),
	toggle("fobjc_infer_related_result_type"),
	toggle("fobjc_weak"),
	toggle("foffload_lto"),
	toggle("foffload_uniform_block"),
	toggle("fomit_frame_pointer"),
	ghost("fopenacc"),
	ghost("fopenmp_assume_no_nested_parallelism"),
	ghost("fopenmp_assume_no_thread_state"),
	ghost("fopenmp_enable_irbuilder"),
	toggle("fopenmp_extensions"),
	ghost("fopenmp_force_usm"),
	toggle("fopenmp_new_driver"),
	ghost("fopenmp_offload_mandatory"),
	toggle("fopenmp_simd"),
	toggle("fopenmp_target_debug"),
	toggle("fopenmp_target_jit"),
	toggle("foperator_names"),
	toggle("foptimize_sibling_calls"),
	ghost("forder_file_instrumentation"),
	toggle("fpascal_strings"),
	toggle("fpch_codegen"),
	toggle("fpch_debuginfo"),
	toggle("fpch_instantiate_templates"),
	ghost("fno_pch_validate_input_files_content"),
	toggle("fprebuilt_implicit_modules"),
	toggle("fpreserve_as_comments"),
	toggle("fprofile_arcs"),
	toggle("fprofile_generate"),
	toggle("fprofile_instr_generate"),
	toggle("fprofile_sample_accurate"),
	toggle("fpseudo_probe_for_profiling"),
	toggle("freciprocal_math"),
	toggle("fregister_global_dtors_with_atexit"),
	toggle("frelaxed_template_template_args"),
	toggle("frtlib_add_rpath"),
	toggle("frtti"),
	toggle("frtti_data"),
	toggle("fsafe_buffer_usage_suggestions"),
	ghost("fsample_profile_use_profi"),
	toggle("fsanitize_address_globals_dead_stripping"),
	toggle("fsanitize_address_outline_instrumentation"),
	toggle("fsanitize_address_poison_custom_array_cookie"),
	toggle("fsanitize_address_use_after_scope"),
	toggle("fsanitize_address_use_odr_indicator"),
	toggle("fsanitize_cfi_canonical_jump_tables"),
	ghost("fsanitize_cfi_icall_experimental_normalize_integers"),
	ghost("fsanitize_cfi_icall_generalize_pointers"),
	toggle("fsanitize_hwaddress_experimental_aliasing"),
	ghost("fno_sanitize_ignorelist"),
	toggle("fsanitize_memory_param_retval"),
	toggle("fsanitize_memory_track_origins"),
	toggle("fsanitize_memory_use_after_dtor"),
	toggle("fsanitize_stable_abi"),
	toggle("fsanitize_stats"),
	toggle("fsanitize_thread_atomics"),
	toggle("fsanitize_thread_func_entry_exit"),
	toggle("fsanitize_thread_memory_access"),
	toggle("fsanitize_trap"),
	toggle("fsave_optimization_record"),
	ghost("fseh_exceptions"),
	toggle("fshort_enums"),
	toggle("fshort_wchar"),
	toggle("fshow_column"),
	ghost("fshow_skipped_includes"),
	toggle("fshow_source_location"),
	toggle("fsigned_char"),
	toggle("fsigned_zeros"),
	toggle("fsized_deallocation"),
	ghost("fsjlj_exceptions"),
	toggle("fskip_odr_check_in_gmf"),
	toggle("fslp_vectorize"),
	toggle("fspell_checking"),
	toggle("fsplit_dwarf_inlining"),
	toggle("fsplit_lto_unit"),
	ghost("fno_split_machine_functions"),
	toggle("fsplit_stack"),
	toggle("fstack_clash_protection"),
	toggle("fstack_protector"),
	ghost("fstack_protector_all"),
	ghost("fstack_protector_strong"),
	toggle("fstack_size_section"),
	ghost("fstack_usage"),
	toggle("fstandalone_debug"),
	toggle("fstrict_aliasing"),
	toggle("fstrict_enums"),
	toggle("fstrict_float_cast_overflow"),
	toggle("fstrict_return"),
	toggle("fstrict_vtable_pointers"),
	toggle("fsycl"),
	ghost("fsyntax_only"),
	ghost("fsystem_module"),
	ghost("fno_temp_file"),
	toggle("ftest_coverage"),
	toggle("fthreadsafe_statics"),
	ghost("ftime_trace"),
	ghost("ftrapv"),
	toggle("ftrigraphs"),
	toggle("funified_lto"),
	toggle("funique_basic_block_section_names"),
	toggle("funique_internal_linkage_names"),
	toggle("funique_section_names"),
	toggle("funroll_loops"),
	toggle("funsafe_math_optimizations"),
	toggle("fuse_cxa_atexit"),
	toggle("fuse_init_array"),
	toggle("fuse_line_directives"),
	ghost("fvalidate_ast_input_files_content"),
	toggle("fvectorize"),
	toggle("fverbose_asm"),
	toggle("fverify_intermediate_code"),
	toggle("fvisibility_inlines_hidden"),
	toggle("fvisibility_inlines_hidden_static_local_var"),
	ghost("fvisibility_ms_compat"),
	ghost("fwasm_exceptions"),
	toggle("fwhole_program_vtables"),
	toggle("fwrapv"),
	ghost("fwritable_strings"),
	toggle("fxl_pragma_pack"),
	toggle("fxray_always_emit_customevents"),
	toggle("fxray_always_emit_typedevents"),
	toggle("fxray_function_index"),
	toggle("fxray_ignore_loops"),
	ghost("fno_xray_instrument"),
	toggle("fxray_link_deps"),
	toggle("fzero_initialized_in_bss"),
	toggle("fzvector"),
	ghost("g"),
	ghost("gcodeview"),
	toggle("gcodeview_command_line"),
	toggle("gcodeview_ghash"),
	ghost("gdwarf"),
	ghost("gdwarf_2"),
	ghost("gdwarf_3"),
	ghost("gdwarf_4"),
	ghost("gdwarf_5"),
	ghost("gdwarf32"),
	ghost("gdwarf64"),
	toggle("gembed_source"),
	toggle("ginline_line_tables"),
	ghost("gline_directives_only"),
	ghost("gline_tables_only"),
	toggle("gmodules"),
	ghost("gpulibc"),
	toggle("gstrict_dwarf"),
	ghost("maix_small_local_exec_tls"),
	toggle("mbackchain"),
	ghost("mcabac"),
	ghost("mcmse"),
	toggle("mconstructor_aliases"),
	ghost("menable_experimental_extensions"),
	ghost("mno_fmv"),
	toggle("mforced_sw_shadow_stack"),
	ghost("mfpxx"),
	toggle("mglobal_merge"),
	ghost("mno_iamcu"),
	toggle("mimplicit_float"),
	toggle("mincremental_linker_compatible"),
	ghost("mindirect_branch_cs_prefix"),
	toggle("mmemops"),
	toggle("mms_bitfields"),
	toggle("mnvj"),
	toggle("mnvs"),
	toggle("modd_spreg"),
	toggle("momit_leaf_frame_pointer"),
	toggle("mpackets"),
	ghost("mqdsp6_compat"),
	ghost("mrecip"),
	toggle("mrelax"),
	toggle("mrelax_all"),
	toggle("msave_restore"),
	ghost("msoft_float"),
	toggle("mstack_arg_probe"),
	toggle("mstackrealign"),
	toggle("mstrict_align"),
	toggle("mtls_direct_seg_refs"),
	ghost("E"),
}
